package registration

import "fmt"

const (
	promptUsername   = "Hi, you are now creating an account! Please enter a username (must not be used by another user)."
	promptSecret     = "Great! Now enter the password for this account (at least 8 characters with 2 numbers)."
	msgCheckDM       = "Check your DM to continue creating your account."
	msgTimedOut      = "Account creation timed out. Please try again."
	msgCancelled     = "Account creation cancelled."
	msgInternalError = "Something went wrong. Please try again later."
)

func confirmation(username, secret string) string {
	return fmt.Sprintf("Congrats! Your account was created successfully!\nUsername: %s\nPassword: ||%s||", username, secret)
}

// CheckDMReply is the public reply to the /create command once the dialogue is open.
func CheckDMReply() string {
	return msgCheckDM
}
