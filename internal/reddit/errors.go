package reddit

import "errors"

var (
	// ErrInvalidProxyAddress reports a proxy address not in "host:port"
	// form.
	ErrInvalidProxyAddress = errors.New("invalid proxy address, expected host:port")

	// ErrMediaTooLarge reports a media download that exceeded the
	// configured size cap.
	ErrMediaTooLarge = errors.New("media exceeds size limit")
)
