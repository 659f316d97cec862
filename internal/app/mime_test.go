package app

import (
	"mime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAttachmentTypesRegistered(t *testing.T) {
	assert.Equal(t, "application/pdf", mime.TypeByExtension(".pdf"))
	assert.Contains(t, mime.TypeByExtension(".json"), "application/json")

	ensureMimeType(".pdreceipt", "application/x-pharmadesk-receipt")
	assert.Equal(t, "application/x-pharmadesk-receipt", mime.TypeByExtension(".pdreceipt"))

	ensureMimeType(".pdreceipt", "text/plain")
	assert.Equal(t, "application/x-pharmadesk-receipt", mime.TypeByExtension(".pdreceipt"))
}

func TestInTestModeFromEnvironment(t *testing.T) {
	assert.True(t, InTestMode())
}
