package handlers

const (
	WelcomeMessage = "Welcome to the BidHub Bot! Use /recommended to see vehicles worth bidding on."
	ErrorMessage   = "Oops! Something went wrong. Please try again."
)

func GenerateWelcomeMessage() string {
	return WelcomeMessage
}

func GenerateErrorMessage() string {
	return ErrorMessage
}
