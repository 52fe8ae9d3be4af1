package naming

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"
)

// SuffixLength is the length of the random node name suffix.
const SuffixLength = 5

// MaxGroupLength leaves room for the suffix within a 63 character hostname.
const MaxGroupLength = 63 - SuffixLength - 1

const suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

var groupPattern = regexp.MustCompile(`^[a-z]([a-z0-9-]*[a-z0-9])?$`)

// ValidateGroup checks that group can prefix a DNS-compatible node name.
func ValidateGroup(group string) error {
	if group == "" {
		return fmt.Errorf("group name must not be empty")
	}
	if len(group) > MaxGroupLength {
		return fmt.Errorf("group name %q is longer than %d characters", group, MaxGroupLength)
	}
	if !groupPattern.MatchString(group) {
		return fmt.Errorf("group name %q must consist of lower case letters, digits and '-', start with a letter and end with a letter or digit", group)
	}
	return nil
}

// RandomSuffix returns n random characters from [a-z0-9].
func RandomSuffix(n int) string {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	for i, b := range buf {
		buf[i] = suffixAlphabet[int(b)%len(suffixAlphabet)]
	}
	return string(buf)
}

// Node returns a fresh node name for group.
func Node(group string) string {
	return fmt.Sprintf("%s-%s", group, RandomSuffix(SuffixLength))
}

// Nodes returns count distinct node names for group that do not collide
// with any name in existing.
func Nodes(group string, count int, existing sets.Set[string]) []string {
	taken := existing.Clone()
	if taken == nil {
		taken = sets.New[string]()
	}
	names := make([]string, 0, count)
	for len(names) < count {
		name := Node(group)
		if taken.Has(name) {
			continue
		}
		taken.Insert(name)
		names = append(names, name)
	}
	return names
}

// GroupFromNodeName returns the group a node name was generated for, or the
// empty string when name carries no suffix.
func GroupFromNodeName(name string) string {
	i := strings.LastIndexByte(name, '-')
	if i <= 0 || i == len(name)-1 {
		return ""
	}
	return name[:i]
}

func Network(group string) string {
	return fmt.Sprintf("nodekit-%s", group)
}

func Subnet(group string) string {
	return fmt.Sprintf("nodekit-%s-subnet", group)
}

func SecurityGroup(group string) string {
	return fmt.Sprintf("nodekit-%s", group)
}

// KeyPair names a one-time key pair; the suffix keeps concurrent batches of
// the same group apart.
func KeyPair(group string) string {
	return fmt.Sprintf("nodekit-%s-%s", group, RandomSuffix(SuffixLength))
}
