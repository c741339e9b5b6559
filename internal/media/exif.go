package media

import (
	"regexp"

	exif "github.com/dsoprea/go-exif/v3"
)

// EXIF holds the metadata fields kept from an image's EXIF block.
// Values are the formatted strings as stored. EXIF timestamps carry no
// timezone, so they are not converted to time.Time.
type EXIF struct {
	// CameraMake is the device manufacturer ("Make" tag).
	CameraMake string `json:"camera_make,omitempty"`

	// CameraModel is the device model ("Model" tag).
	CameraModel string `json:"camera_model,omitempty"`

	// Software names the processing or editing software.
	Software string `json:"software,omitempty"`

	// HasGPS reports whether the block carried GPS coordinates. The
	// coordinates themselves are not recorded.
	HasGPS bool `json:"has_gps,omitempty"`

	// TakenAt is the capture timestamp in EXIF's own format,
	// "2006:01:02 15:04:05". DateTimeOriginal is preferred, then
	// DateTimeDigitized, then DateTime.
	TakenAt string `json:"taken_at,omitempty"`
}

// empty reports whether no field of interest was present.
func (e *EXIF) empty() bool {
	return e.CameraMake == "" && e.CameraModel == "" && e.Software == "" &&
		!e.HasGPS && e.TakenAt == ""
}

// exifCapablePattern matches saved names whose format can carry an EXIF
// block. Reddit's CDN strips metadata from its other delivery formats.
var exifCapablePattern = regexp.MustCompile(`(?i)\.(jpe?g|tiff?)$`)

// exifCapable reports whether a saved image is worth scanning for an
// EXIF block, judged by content type with the file name as fallback.
func exifCapable(contentType, name string) bool {
	switch contentType {
	case "image/jpeg", "image/tiff":
		return true
	}
	return exifCapablePattern.MatchString(name)
}

// parseEXIF extracts the kept fields from raw image bytes. Images
// without an EXIF block, and blocks that cannot be parsed, yield nil;
// absence is the normal case for CDN-processed uploads.
func parseEXIF(imageData []byte) *EXIF {
	rawExif, err := exif.SearchAndExtractExif(imageData)
	if err != nil || rawExif == nil {
		return nil
	}

	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return nil
	}

	var meta EXIF
	var digitized, modified string
	for _, entry := range entries {
		switch entry.TagName {
		case "Make":
			meta.CameraMake = entry.Formatted
		case "Model":
			meta.CameraModel = entry.Formatted
		case "Software", "ProcessingSoftware":
			if meta.Software == "" {
				meta.Software = entry.Formatted
			}
		case "GPSLatitude", "GPSLongitude":
			meta.HasGPS = true
		case "DateTimeOriginal":
			meta.TakenAt = entry.Formatted
		case "DateTimeDigitized":
			digitized = entry.Formatted
		case "DateTime":
			modified = entry.Formatted
		}
	}
	if meta.TakenAt == "" {
		meta.TakenAt = digitized
	}
	if meta.TakenAt == "" {
		meta.TakenAt = modified
	}

	if meta.empty() {
		return nil
	}
	return &meta
}
