package vectorstore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketName_Basic(t *testing.T) {
	assert.Equal(t, "col_report_pdf", BucketName("report.pdf"))
	assert.Equal(t, "col_my_notes_txt", BucketName("My Notes.txt"))
}

func TestBucketName_FoldsToLowercase(t *testing.T) {
	// Postgres folds unquoted identifiers to lowercase. A mixed-case name
	// would exist under its quoted form but miss every catalog lookup that
	// takes the name as text, so uppercase sources must fold up front.
	assert.Equal(t, "col_readme_md", BucketName("README.md"))
	assert.Equal(t, BucketName("report.pdf"), BucketName("Report.PDF"))

	long := strings.Repeat("Ab", 40) + ".pdf"
	for _, source := range []string{"MiXeD CaSe.TXT", long} {
		name := BucketName(source)
		assert.Equal(t, strings.ToLower(name), name, source)
	}
}

func TestBucketName_Fallback(t *testing.T) {
	assert.Equal(t, "col_default", BucketName(""))
	assert.Equal(t, "col_default", BucketName("   "))
}

func TestBucketName_Deterministic(t *testing.T) {
	source := "https://example.com/articles/2023/how-to-build-things"
	first := BucketName(source)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, BucketName(source))
	}
}

func TestBucketName_SanitizesSpecialCharacters(t *testing.T) {
	name := BucketName("a/b:c d*e")
	assert.Equal(t, "col_a_b_c_d_e", name)
}

func TestBucketName_LongSourceTruncated(t *testing.T) {
	source := "https://example.com/" + strings.Repeat("deep/path/", 12) + "page.html"
	require.Greater(t, len(source), 100)

	name := BucketName(source)

	// Prefix + 40 sanitized chars + separator + 8 hex chars
	assert.Len(t, name, len("col_")+40+1+8)
	assert.True(t, strings.HasPrefix(name, "col_https_"), name)

	suffix := name[len(name)-8:]
	for _, r := range suffix {
		assert.Contains(t, "0123456789abcdef", string(r))
	}
}

func TestBucketName_LongSourcesWithSharedPrefixDiffer(t *testing.T) {
	base := strings.Repeat("x", 60)
	a := BucketName(base + "/alpha")
	b := BucketName(base + "/beta")

	assert.NotEqual(t, a, b)
	// Same truncated prefix, different hash suffix
	assert.Equal(t, a[:len("col_")+40], b[:len("col_")+40])
}

func TestBucketName_ShortSourceNotHashed(t *testing.T) {
	name := BucketName(strings.Repeat("a", maxSanitizedLen))
	assert.Equal(t, "col_"+strings.Repeat("a", maxSanitizedLen), name)
}

func TestBucketName_FitsPostgresIdentifierLimit(t *testing.T) {
	sources := []string{
		"short.pdf",
		strings.Repeat("long-", 50) + ".epub",
		"https://example.com/?q=" + strings.Repeat("z", 200),
	}
	for _, source := range sources {
		assert.LessOrEqual(t, len(BucketName(source)), 63, source)
	}
}
