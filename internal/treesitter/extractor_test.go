package treesitter

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmarques/vulnhist/internal/models"
)

func newTestExtractor(t *testing.T, language string) *Extractor {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	extractor, err := NewExtractor(language, logger)
	require.NoError(t, err)
	t.Cleanup(extractor.Close)
	return extractor
}

func TestNewExtractorUnsupportedLanguage(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	_, err := NewExtractor("go", logger)
	assert.Error(t, err)
}

func TestExtractSourceC(t *testing.T) {
	extractor := newTestExtractor(t, "c")

	source := `#include <stdio.h>

static int add(int a, int b) {
    return a + b;
}

struct point {
    int x;
    int y;
};

union value {
    int i;
    float f;
};

struct point origin;

int main(void) {
    struct local { int z; };
    return add(1, 2);
}
`

	functions, classes := extractor.ExtractSource(context.Background(), "main.c", []byte(source))

	assert.Equal(t, []models.CodeUnit{
		{Name: "add", Signature: "add(int a, int b)", Lines: models.LineRange{Begin: 3, End: 5}},
		{Name: "main", Signature: "main(void)", Lines: models.LineRange{Begin: 19, End: 22}},
	}, functions)

	assert.Equal(t, []models.CodeUnit{
		{Name: "point", Signature: "point", Kind: KindStruct, Lines: models.LineRange{Begin: 7, End: 10}},
		{Name: "value", Signature: "value", Kind: KindUnion, Lines: models.LineRange{Begin: 12, End: 15}},
		{Name: "local", Signature: "local", Kind: KindStruct, Lines: models.LineRange{Begin: 20, End: 20}},
	}, classes)
}

func TestExtractSourceCpp(t *testing.T) {
	extractor := newTestExtractor(t, "c++")

	source := `#include <string>

class Widget {
public:
    Widget();
    ~Widget();
    void draw() const;
    int size() const { return size_; }
    explicit operator bool() const { return size_ > 0; }

private:
    int size_;
};

Widget::Widget() {
    size_ = 0;
}

Widget::~Widget() {
}

void Widget::draw() const {
}

template <typename T>
T max_of(T a, T b) {
    return a > b ? a : b;
}

template <typename T>
struct Holder {
    T value;
};
`

	functions, classes := extractor.ExtractSource(context.Background(), "widget.cpp", []byte(source))

	// Out-of-line members parse as plain functions once the Widget::
	// qualifiers are stripped, and the stripping keeps line numbers
	// intact
	assert.Equal(t, []models.CodeUnit{
		{Name: "size", Signature: "size() const", Lines: models.LineRange{Begin: 8, End: 8}},
		{Name: "operator bool", Signature: "operator bool() const", Lines: models.LineRange{Begin: 9, End: 9}},
		{Name: "Widget", Signature: "Widget()", Lines: models.LineRange{Begin: 15, End: 17}},
		{Name: "~Widget", Signature: "~Widget()", Lines: models.LineRange{Begin: 19, End: 20}},
		{Name: "draw", Signature: "draw() const", Lines: models.LineRange{Begin: 22, End: 23}},
		{Name: "max_of", Signature: "max_of(T a, T b)", Lines: models.LineRange{Begin: 25, End: 28}},
	}, functions)

	assert.Equal(t, []models.CodeUnit{
		{Name: "Widget", Signature: "Widget", Kind: KindClass, Lines: models.LineRange{Begin: 3, End: 13}},
		{Name: "Holder", Signature: "Holder", Kind: KindClass, Lines: models.LineRange{Begin: 30, End: 33}},
	}, classes)
}

func TestExtractSourceSkipsAnonymousTypes(t *testing.T) {
	extractor := newTestExtractor(t, "c")

	source := `typedef struct {
    int x;
} point_t;

struct named;
`

	functions, classes := extractor.ExtractSource(context.Background(), "types.c", []byte(source))
	assert.Empty(t, functions)
	assert.Empty(t, classes)
}

func TestExtractFile(t *testing.T) {
	extractor := newTestExtractor(t, "c")

	dir := t.TempDir()
	path := filepath.Join(dir, "f.c")
	require.NoError(t, os.WriteFile(path, []byte("int f(void) { return 0; }\n"), 0644))

	functions, classes := extractor.ExtractFile(context.Background(), path)
	require.Len(t, functions, 1)
	assert.Equal(t, "f", functions[0].Name)
	assert.Equal(t, models.LineRange{Begin: 1, End: 1}, functions[0].Lines)
	assert.Empty(t, classes)
}

func TestExtractFileMissing(t *testing.T) {
	extractor := newTestExtractor(t, "c")

	functions, classes := extractor.ExtractFile(context.Background(), filepath.Join(t.TempDir(), "absent.c"))
	assert.Empty(t, functions)
	assert.Empty(t, classes)
}
