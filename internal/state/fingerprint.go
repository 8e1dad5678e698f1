package state

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/inful/mdfp"

	"git.home.luguber.info/inful/docweave/internal/markdown"
)

// Fingerprint returns the content fingerprint of a published file. Markdown
// is fingerprinted with mdfp over its frontmatter and body; anything else
// gets a sha256 hex digest.
func Fingerprint(content []byte) string {
	doc, err := markdown.Parse(content, markdown.Options{})
	if err != nil {
		sum := sha256.Sum256(content)
		return hex.EncodeToString(sum[:])
	}
	fm := strings.TrimSuffix(doc.RawFrontmatter(), "\n")
	return mdfp.CalculateFingerprintFromParts(fm, string(doc.Body()))
}
