package app

import (
	"log/slog"
	"mime"
)

// Attachments are typed by extension; slim images ship without /etc/mime.types.
func init() {
	ensureMimeType(".pdf", "application/pdf")
	ensureMimeType(".json", "application/json")
}

func ensureMimeType(ext, typ string) {
	if mime.TypeByExtension(ext) != "" {
		return
	}
	if err := mime.AddExtensionType(ext, typ); err != nil {
		slog.Default().Warn("register mime type", slog.String("ext", ext), slog.Any("error", err))
	}
}
