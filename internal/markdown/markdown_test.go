package markdown

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
)

func TestParseRender_NoLinksIsIdempotent(t *testing.T) {
	content := []byte("# Title\n\nSome *emphasis*  and text.\r\n\n    code block\n")

	doc, err := Parse(content, Options{})
	require.NoError(t, err)
	first, err := doc.Render()
	require.NoError(t, err)

	doc2, err := Parse(first, Options{})
	require.NoError(t, err)
	second, err := doc2.Render()
	require.NoError(t, err)

	require.Equal(t, content, first)
	require.Equal(t, first, second)
}

func TestParse_RejectsBinaryContent(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	_, err := Parse(png, Options{})
	require.ErrorIs(t, err, ErrNotMarkdown)
	require.True(t, errors.HasCategory(err, errors.CategoryMarkdown))
}

func TestParse_TreeKinds(t *testing.T) {
	doc, err := Parse([]byte("See [a](a.md) and ![i](img/i.png).\n"), Options{})
	require.NoError(t, err)

	root := doc.Root()
	require.Equal(t, KindContainer, root.Kind)
	require.Equal(t, "Document", root.Type)
	require.Len(t, root.Children, 1)

	para := root.Children[0]
	require.Equal(t, "Paragraph", para.Type)

	links := LinkNodes(doc)
	require.Len(t, links, 2)
	require.Equal(t, KindLink, links[0].Kind)
	require.Equal(t, "a.md", links[0].Attrs[AttrHref])
	require.Equal(t, KindImage, links[1].Kind)
	require.Equal(t, "img/i.png", links[1].Attrs[AttrSrc])
}

func TestRender_RewritesOnlyChangedDestinations(t *testing.T) {
	doc, err := Parse([]byte("[text](../x.md) and ![img](http://ext.com/i.png)\n"), Options{})
	require.NoError(t, err)

	links := LinkNodes(doc)
	require.Len(t, links, 2)
	links[0].SetTarget("repo1/../x.md")

	out, err := doc.Render()
	require.NoError(t, err)
	require.Equal(t, "[text](repo1/../x.md) and ![img](http://ext.com/i.png)\n", string(out))
}

func TestRender_PreservesTitlesAndAngleBrackets(t *testing.T) {
	src := "[a](a.md \"The Title\")\n\n[b](<my file.md>)\n"
	doc, err := Parse([]byte(src), Options{})
	require.NoError(t, err)

	links := LinkNodes(doc)
	require.Len(t, links, 2)
	require.Equal(t, "The Title", links[0].Attrs[AttrTitle])
	require.Equal(t, "my file.md", links[1].Target())

	for _, n := range links {
		n.SetTarget("ns/" + n.Target())
	}
	out, err := doc.Render()
	require.NoError(t, err)
	require.Equal(t, "[a](ns/a.md \"The Title\")\n\n[b](<ns/my file.md>)\n", string(out))
}

func TestRender_DuplicateEmptyTextLinksGetDistinctSpans(t *testing.T) {
	doc, err := Parse([]byte("[](a.md) [](a.md)\n"), Options{})
	require.NoError(t, err)

	links := LinkNodes(doc)
	require.Len(t, links, 2)
	for _, n := range links {
		require.True(t, n.Editable())
		n.SetTarget("r/" + n.Target())
	}
	out, err := doc.Render()
	require.NoError(t, err)
	require.Equal(t, "[](r/a.md) [](r/a.md)\n", string(out))
}

func TestRender_ReferenceDefinition(t *testing.T) {
	doc, err := Parse([]byte("See [API][ref].\n\n[ref]: api.md\n"), Options{})
	require.NoError(t, err)

	require.Equal(t, []string{"api.md"}, ExtractLinks(doc))
	LinkNodes(doc)[0].SetTarget("repo/api.md")

	out, err := doc.Render()
	require.NoError(t, err)
	require.Equal(t, "See [API][ref].\n\n[ref]: repo/api.md\n", string(out))
}

func TestParse_DecodesEscapesAndEntities(t *testing.T) {
	src := "[a](my\\_file.md) [b](a&amp;b.md) ![c](c&#95;d.png)\n"
	doc, err := Parse([]byte(src), Options{})
	require.NoError(t, err)

	require.Equal(t, []string{"my_file.md", "a&b.md", "c_d.png"}, ExtractLinks(doc))

	out, err := doc.Render()
	require.NoError(t, err)
	require.Equal(t, src, string(out))
}

func TestPrefix_KeepsSourceEscapes(t *testing.T) {
	doc, err := Parse([]byte("[a](my\\_file.md) [b](<a&amp;b c.md>)\n"), Options{})
	require.NoError(t, err)

	for _, n := range LinkNodes(doc) {
		n.Prefix("ns/")
	}
	require.Equal(t, []string{"ns/my_file.md", "ns/a&b c.md"}, ExtractLinks(doc))

	out, err := doc.Render()
	require.NoError(t, err)
	require.Equal(t, "[a](ns/my\\_file.md) [b](<ns/a&amp;b c.md>)\n", string(out))
}

func TestAutoLink_IsNotEditable(t *testing.T) {
	doc, err := Parse([]byte("<https://example.com/path>\n"), Options{})
	require.NoError(t, err)

	links := LinkNodes(doc)
	require.Len(t, links, 1)
	require.Equal(t, "https://example.com/path", links[0].Target())
	require.False(t, links[0].Editable())

	links[0].SetTarget("changed")
	_, err = doc.Render()
	require.Error(t, err)
}

func TestFrontmatter_SplitAndPreserved(t *testing.T) {
	src := "---\ntitle: Guide\n---\n[next](next.md)\n"
	doc, err := Parse([]byte(src), Options{})
	require.NoError(t, err)
	require.True(t, doc.HadFrontmatter())

	fm, err := doc.Frontmatter()
	require.NoError(t, err)
	require.Equal(t, "Guide", fm["title"])
	require.Equal(t, "title: Guide\n", doc.RawFrontmatter())
	require.Equal(t, "[next](next.md)\n", string(doc.Body()))

	require.Equal(t, []string{"next.md"}, ExtractLinks(doc))
	LinkNodes(doc)[0].SetTarget("docs/next.md")
	out, err := doc.Render()
	require.NoError(t, err)
	require.Equal(t, "---\ntitle: Guide\n---\n[next](docs/next.md)\n", string(out))
}

func TestFrontmatter_UnterminatedIsBody(t *testing.T) {
	doc, err := Parse([]byte("---\n[a](a.md)\n"), Options{})
	require.NoError(t, err)
	require.False(t, doc.HadFrontmatter())
	require.Equal(t, []string{"a.md"}, ExtractLinks(doc))
}

func TestHTMLLinks_OptIn(t *testing.T) {
	src := []byte("<img src=\"img/logo.png\" alt=\"logo\">\n\nInline <a href='setup.md'>setup</a> and [a](a.md).\n")

	plain, err := Parse(src, Options{})
	require.NoError(t, err)
	require.Equal(t, []string{"a.md"}, ExtractLinks(plain))

	doc, err := Parse(src, Options{HTMLLinks: true})
	require.NoError(t, err)
	require.Equal(t, []string{"img/logo.png", "setup.md", "a.md"}, ExtractLinks(doc))

	for _, n := range LinkNodes(doc) {
		n.SetTarget("r/" + n.Target())
	}
	out, err := doc.Render()
	require.NoError(t, err)
	require.Equal(t,
		"<img src=\"r/img/logo.png\" alt=\"logo\">\n\nInline <a href='r/setup.md'>setup</a> and [a](r/a.md).\n",
		string(out))
}

func TestParseFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := ParseFile(filepath.Join(dir, "missing.md"), Options{})
	require.True(t, errors.HasCategory(err, errors.CategoryFileSystem))

	bin := filepath.Join(dir, "a.png")
	require.NoError(t, os.WriteFile(bin, []byte{0x89, 0x00, 0x01}, 0o600))
	_, err = ParseFile(bin, Options{})
	require.ErrorIs(t, err, ErrNotMarkdown)
}
