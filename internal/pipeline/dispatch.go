package pipeline

import "strings"

// selectPlan maps a mime type to its derivation Plan. A nil Plan
// means store only, no derivations.
func selectPlan(mime string, office OfficeConverter) Plan {
	mime = strings.ToLower(strings.TrimSpace(mime))

	switch {
	case strings.HasPrefix(mime, "image/"):
		return &ImagePlan{}
	case mime == "application/pdf":
		return &PDFPlan{}
	case isOfficeMime(mime):
		return &OfficePlan{Converter: office}
	case mime == "message/rfc822":
		return &EmailPlan{}
	case mime == "text/html":
		return &HTMLPlan{}
	case mime == "text/plain":
		return &TextPlan{}
	default:
		return nil
	}
}

// isOfficeMime reports whether mime is one of the
// word/excel/powerpoint/opendocument content types the office
// converter plan handles.
func isOfficeMime(mime string) bool {
	switch mime {
	case "application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.ms-excel",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/vnd.ms-powerpoint",
		"application/vnd.openxmlformats-officedocument.presentationml.presentation",
		"application/vnd.oasis.opendocument.text",
		"application/vnd.oasis.opendocument.spreadsheet",
		"application/vnd.oasis.opendocument.presentation":
		return true
	default:
		return false
	}
}
