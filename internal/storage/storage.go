package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"
)

type Uploader interface {
	Upload(ctx context.Context, objectName string, contentType string, r io.Reader) (storedPath string, err error)
}

type Signer interface {
	SignedGetURL(ctx context.Context, objectName string, ttl time.Duration) (string, error)
}

// VoiceObjectName lays out archived recordings as voice/<user>/<yyyy>/<mm>/<dd>/<id><ext>.
func VoiceObjectName(userID, id, ext string, at time.Time) string {
	at = at.UTC()
	return path.Join("voice", userID,
		fmt.Sprintf("%04d", at.Year()),
		fmt.Sprintf("%02d", int(at.Month())),
		fmt.Sprintf("%02d", at.Day()),
		id+ext)
}
