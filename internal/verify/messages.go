package verify

import "fmt"

// Candidate-facing replies. The suffix-mismatch reply is deliberately the
// same text as the not-found reply.
const (
	msgFormatWithSuffix = "Please send your full name and the last 4 digits of your phone number in a single message. Example: Ivanov Ivan Ivanovich 5411"
	msgFormatNameOnly   = "Please send your full name in a single message. Example: Ivanov Ivan Ivanovich"

	msgNotFound = "Couldn't find you among the enrolled. Check that your full name and phone digits are exactly as enrolled and try again."

	msgUnverifiable = "I can't verify you automatically. Please contact an administrator."

	msgAlreadyBound = "It looks like you are already verified. If something is wrong, contact an administrator."

	msgTechnical = "Technical error. Please try again later."

	msgLocked = "Too many attempts. Please wait a bit and try again."
)

func promptMessage(requireSuffix bool) string {
	format := "your full name and the last 4 digits of your phone number"
	example := "Ivanov Ivan Ivanovich 5411"
	if !requireSuffix {
		format = "your full name"
		example = "Ivanov Ivan Ivanovich"
	}
	return fmt.Sprintf(
		"Hi! Before I can let you into the group I need to check you against the enrollment list.\n"+
			"Please send %s in one message.\nExample: %s", format, example)
}

func formatMessage(requireSuffix bool) string {
	if requireSuffix {
		return msgFormatWithSuffix
	}
	return msgFormatNameOnly
}

func alreadyVerifiedMessage(fullName, inviteLink string) string {
	msg := fmt.Sprintf("%s, it looks like you are already verified.", fullName)
	if inviteLink != "" {
		msg += fmt.Sprintf(" Here is the invite link again just in case:\n%s", inviteLink)
	}
	return msg + "\nIf something is wrong, contact an administrator."
}

func welcomeMessage(inviteLink string) string {
	msg := "You passed the check!"
	if inviteLink != "" {
		msg += fmt.Sprintf(" Join the group here: %s", inviteLink)
	}
	return msg
}
