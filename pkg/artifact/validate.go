package artifact

import (
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/peachmeow/peachmeow/pkg/types"
)

// APKMediaType is the media type of an Android package.
const APKMediaType = "application/vnd.android.package-archive"

// Android packages do not always start with their manifest entry, so the
// detector is given more of the file than its default header.
const detectLimit = 1 << 20

var setLimit sync.Once

// Validate fails unless path holds an Android package. The first call raises
// mimetype's process-wide read limit to detectLimit.
func Validate(path string) error {
	setLimit.Do(func() { mimetype.SetLimit(detectLimit) })

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return err
	}
	if !mtype.Is(APKMediaType) {
		return &types.InvalidArtifactError{Path: path, Detected: mtype.String()}
	}
	return nil
}
