package provider

import "errors"

var (
	// ErrNotInitialized is returned when an operation runs before Initialize succeeded.
	ErrNotInitialized = errors.New("provider not initialized")

	// ErrConfiguration is returned when a session cannot be established.
	ErrConfiguration = errors.New("provider configuration error")

	// ErrNotConfigured is reported by probes of adapters that are not configured.
	ErrNotConfigured = errors.New("provider not configured")

	// ErrFileNotFound is matched by FileNotFoundError.
	ErrFileNotFound = errors.New("file not found")

	// ErrUploadFailed is returned when the backend rejected or lost a write.
	ErrUploadFailed = errors.New("upload failed")

	// ErrDownloadFailed is returned when a read failed for reasons other than absence.
	ErrDownloadFailed = errors.New("download failed")

	// ErrDeleteFailed is returned when a delete failed for reasons other than absence.
	ErrDeleteFailed = errors.New("delete failed")

	// ErrListFailed is returned when listing the backend failed.
	ErrListFailed = errors.New("list failed")

	// ErrEncryptionFailed is returned when the payload could not be encrypted.
	ErrEncryptionFailed = errors.New("encryption failed")

	// ErrDecryptionFailed is returned when the payload could not be decrypted.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrInvalidFilename is matched by InvalidFilenameError.
	ErrInvalidFilename = errors.New("invalid filename")
)

// FileNotFoundError is returned when filename does not exist on a backend.
type FileNotFoundError struct {
	Filename string
}

func (e FileNotFoundError) Error() string {
	return "file not found: " + e.Filename
}

// Is lets errors.Is(err, ErrFileNotFound) match.
func (e FileNotFoundError) Is(target error) bool {
	return target == ErrFileNotFound
}

// InvalidFilenameError is returned when a filename is unusable as an object key.
type InvalidFilenameError struct {
	Filename string
	Reason   string
}

func (e InvalidFilenameError) Error() string {
	return "invalid filename " + `"` + e.Filename + `": ` + e.Reason
}

// Is lets errors.Is(err, ErrInvalidFilename) match.
func (e InvalidFilenameError) Is(target error) bool {
	return target == ErrInvalidFilename
}

// IsNotFound reports whether err means the object is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrFileNotFound)
}
