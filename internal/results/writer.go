package results

import (
	"context"
	"path"
	"strings"
)

// Writer stores a quiz document. Put overwrites any existing object, so a
// repeated write of the same job is harmless.
type Writer interface {
	Put(ctx context.Context, bucket, key string, payload []byte) error
}

const contentType = "application/json"

// OutputKey derives the result key from the source key: the extension is
// dropped, ".quiz.json" appended and prefix prepended.
//
//	OutputKey("quizzes/", "lectures/week1.mp4") == "quizzes/lectures/week1.quiz.json"
func OutputKey(prefix, sourceKey string) string {
	base := strings.TrimSuffix(sourceKey, path.Ext(sourceKey))
	return prefix + base + ".quiz.json"
}
