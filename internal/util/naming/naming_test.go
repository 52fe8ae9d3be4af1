package naming

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"k8s.io/apimachinery/pkg/util/sets"
)

func TestValidateGroup(t *testing.T) {
	t.Parallel()
	tests := []struct {
		group   string
		wantErr bool
	}{
		{"web", false},
		{"web-01", false},
		{"a", false},
		{"", true},
		{"Web", true},
		{"1web", true},
		{"web-", true},
		{"web_01", true},
		{strings.Repeat("a", MaxGroupLength), false},
		{strings.Repeat("a", MaxGroupLength+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.group, func(t *testing.T) {
			t.Parallel()
			err := ValidateGroup(tt.group)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNode(t *testing.T) {
	t.Parallel()
	name := Node("web")

	assert.True(t, strings.HasPrefix(name, "web-"))
	assert.Len(t, name, len("web-")+SuffixLength)
	assert.Equal(t, "web", GroupFromNodeName(name))
}

func TestNodes_Distinct(t *testing.T) {
	t.Parallel()
	existing := sets.New("web-aaaaa")
	names := Nodes("web", 50, existing)

	assert.Len(t, names, 50)
	assert.Len(t, sets.New(names...), 50)
	assert.NotContains(t, names, "web-aaaaa")
	assert.Equal(t, 1, existing.Len(), "input set must not be modified")
}

func TestNodes_NilExisting(t *testing.T) {
	t.Parallel()
	assert.Len(t, Nodes("web", 3, nil), 3)
}

func TestGroupFromNodeName(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"web-x1y2z":    "web",
		"web-01-x1y2z": "web-01",
		"standalone":   "",
		"-abcde":       "",
		"trailing-":    "",
		"":             "",
	}
	for name, want := range tests {
		assert.Equal(t, want, GroupFromNodeName(name), name)
	}
}

func TestResourceNames(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "nodekit-web", Network("web"))
	assert.Equal(t, "nodekit-web-subnet", Subnet("web"))
	assert.Equal(t, "nodekit-web", SecurityGroup("web"))
	assert.True(t, strings.HasPrefix(KeyPair("web"), "nodekit-web-"))
	assert.NotEqual(t, KeyPair("web"), KeyPair("web"))
}
