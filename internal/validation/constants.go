package validation

const (
	// String lengths
	MaxNameLength        = 255
	MaxDescriptionLength = 500
	MaxReasonLength      = 1000
	MaxAddressLength     = 255
)
