package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTagger_Tags(t *testing.T) {
	tagger := NewTagger(nil)

	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{"golang content", "Let me run go test to verify this change.", []string{"golang", "testing"}},
		{"kubernetes deployment", "Apply this kubectl deployment to the k8s cluster.", []string{"kubernetes"}},
		{"debugging session", "There's a bug in the error handling code.", []string{"debugging"}},
		{"no matching tags", "Hello, how are you today?", nil},
		{"case insensitive", "Using DOCKER to ship the image.", []string{"docker"}},
		{"word boundaries", "Restore the rapid builder", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tagger.Tags(tt.content))
		})
	}
}

func TestTagger_FileTags(t *testing.T) {
	tagger := NewTagger(nil)

	assert.Equal(t, []string{"docker", "golang"}, tagger.FileTags([]string{"cmd/main.go", "Dockerfile"}))
	assert.Equal(t, []string{"python", "testing"}, tagger.FileTags([]string{"tests/test_app.py"}))
	assert.Empty(t, tagger.FileTags([]string{"notes.txt"}))
}

func TestTagger_CustomRules(t *testing.T) {
	tagger := NewTagger(map[string][]string{"payments": {"stripe", "invoice"}})
	assert.Equal(t, []string{"payments"}, tagger.Tags("generate the invoice"))
	assert.Nil(t, tagger.Tags("deploy to kubernetes"))
}

func TestDomain(t *testing.T) {
	assert.Equal(t, "docker", Domain([]string{"testing", "docker", "api"}))
	assert.Equal(t, "database", Domain([]string{"database", "security"}))
	assert.Equal(t, "golang", Domain([]string{"golang"}))
	assert.Equal(t, "", Domain(nil))
}
