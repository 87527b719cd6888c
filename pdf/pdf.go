package pdf

/*
#cgo pkg-config: glib-2.0 gio-2.0 cairo poppler-glib
#cgo LDFLAGS: -pthread

#include <cairo/cairo.h>
#include <locale.h>
#include <poppler/glib/poppler.h>
#include <pthread.h>
#include <stdbool.h>
#include <stdio.h>
#include <stdlib.h>

static pthread_mutex_t cairo_mutex = PTHREAD_MUTEX_INITIALIZER;

PopplerDocument *open_document(const char *filename, int *num_pages){
	GFile* file = g_file_new_for_path(filename);
	if(file == NULL){
		return NULL;
	}

	GError* error = NULL;
	GBytes* bytes = g_file_load_bytes(file, NULL, NULL, &error);
	g_object_unref(file);

	if (error != NULL) {
		g_print("Error loading PDF file: %s\n", error->message);
		g_clear_error(&error);
		return NULL;
	}

	PopplerDocument *doc = poppler_document_new_from_bytes(bytes, NULL, &error);
	if (error) {
		g_print("Error creating PDF document: %s\n", error->message);
		g_clear_error(&error);
		g_bytes_unref(bytes);
		return NULL;
	}

	*num_pages = poppler_document_get_n_pages(doc);
	g_bytes_unref(bytes);
	return doc;
}

// Find every occurrence of text on the page.
// Returns a malloc'd array of 4*count doubles (x1, y1, x2, y2) in PDF
// user space (bottom-left origin). The caller frees it.
double *find_text(PopplerPage *page, const char *text, int *count) {
	PopplerFindFlags flags = POPPLER_FIND_DEFAULT;
#if POPPLER_CHECK_VERSION(21, 5, 0)
	flags |= POPPLER_FIND_MULTILINE;
#endif

	*count = 0;
	GList *matches = poppler_page_find_text_with_options(page, text, flags);
	if (matches == NULL) {
		return NULL;
	}

	int n = g_list_length(matches);
	double *out = malloc(sizeof(double) * 4 * n);
	if (out == NULL) {
		g_list_free_full(matches, (GDestroyNotify)poppler_rectangle_free);
		return NULL;
	}

	int i = 0;
	for (GList *l = matches; l != NULL; l = l->next) {
		PopplerRectangle *r = (PopplerRectangle *)l->data;
		out[i*4+0] = r->x1;
		out[i*4+1] = r->y1;
		out[i*4+2] = r->x2;
		out[i*4+3] = r->y2;
		i++;
	}

	g_list_free_full(matches, (GDestroyNotify)poppler_rectangle_free);
	*count = n;
	return out;
}

// Render page to a PNG at dpi, stroking each rect (x0, y0, x1, y1 in
// top-left page space) in red.
bool render_highlighted(PopplerPage *page, double dpi, const double *rects, int n, const char *output_file) {
	double width, height;
	poppler_page_get_size(page, &width, &height);

	int pixel_width = (int)(width * dpi / 72.0);
	int pixel_height = (int)(height * dpi / 72.0);

	pthread_mutex_lock(&cairo_mutex);

	cairo_surface_t* surface =
		cairo_image_surface_create(CAIRO_FORMAT_ARGB32, pixel_width, pixel_height);
	if (cairo_surface_status(surface) != CAIRO_STATUS_SUCCESS) {
		cairo_surface_destroy(surface);
		pthread_mutex_unlock(&cairo_mutex);
		puts("Unable to create cairo surface");
		return false;
	}

	cairo_t* cr = cairo_create(surface);
	if (cairo_status(cr) != CAIRO_STATUS_SUCCESS) {
		cairo_destroy(cr);
		cairo_surface_destroy(surface);
		pthread_mutex_unlock(&cairo_mutex);
		puts("Error: could not create cairo context");
		return false;
	}

	cairo_set_source_rgb(cr, 1.0, 1.0, 1.0);
	cairo_paint(cr);

	cairo_scale(cr, pixel_width / width, pixel_height / height);
	poppler_page_render(page, cr);

	cairo_set_source_rgb(cr, 1.0, 0.0, 0.0);
	cairo_set_line_width(cr, 2.0);
	for (int i = 0; i < n; i++) {
		double x0 = rects[i*4+0];
		double y0 = rects[i*4+1];
		double x1 = rects[i*4+2];
		double y1 = rects[i*4+3];
		cairo_rectangle(cr, x0, y0, x1 - x0, y1 - y0);
		cairo_stroke(cr);
	}

	pthread_mutex_unlock(&cairo_mutex);

	cairo_status_t status = cairo_surface_write_to_png(surface, output_file);
	cairo_destroy(cr);
	cairo_surface_destroy(surface);

	if (status != CAIRO_STATUS_SUCCESS) {
		puts("Error: could not write to png file");
		return false;
	}
	return true;
}
*/
import "C"
import (
	"errors"
	"fmt"
	"strings"
	"unsafe"

	"github.com/abiiranathan/pdfmatch/alg"
	"github.com/abiiranathan/pdfmatch/search"
)

// DefaultDPI is the resolution of rendered page images.
const DefaultDPI = 150

var (
	ErrOpen   = errors.New("unable to open document")
	ErrRender = errors.New("unable to render page")
)

var (
	_ search.Document = (*Document)(nil)
	_ search.Page     = (*Page)(nil)
)

type Document struct {
	doc       *C.PopplerDocument
	Path      string
	pageCount int

	// Resolution used by Page.Render.
	DPI float64
}

// Option configures a Document.
type Option func(*Document)

// WithDPI sets the resolution used by Page.Render.
func WithDPI(dpi float64) Option {
	return func(d *Document) {
		if dpi > 0 {
			d.DPI = dpi
		}
	}
}

func SetLocale() {
	locale := C.CString("")
	defer C.free(unsafe.Pointer(locale))

	// Set locale to UTF-8
	C.setlocale(C.LC_ALL, locale)
}

func Open(path string, opts ...Option) (*Document, error) {
	var c_path *C.char = C.CString(path)
	defer C.free(unsafe.Pointer(c_path))

	var num_pages C.int
	doc := C.open_document(c_path, &num_pages)
	if doc == nil {
		return nil, fmt.Errorf("%w: %s", ErrOpen, path)
	}

	pdf := &Document{
		doc:       doc,
		Path:      path,
		pageCount: int(num_pages),
		DPI:       DefaultDPI,
	}
	for _, opt := range opts {
		opt(pdf)
	}
	return pdf, nil
}

func (pdf *Document) Close() {
	if pdf.doc != nil {
		C.g_object_unref(C.gpointer(pdf.doc))
		pdf.doc = nil
	}
}

func (pdf *Document) NumPages() int {
	return pdf.pageCount
}

type Page struct {
	page *C.PopplerPage

	doc     *Document
	PageNum int

	Width  float64
	Height float64
}

func (pdf *Document) GetPage(page int) *Page {
	if page < 0 || page >= pdf.pageCount {
		return nil
	}

	p_page := &Page{
		doc:     pdf,
		page:    C.poppler_document_get_page(pdf.doc, C.int(page)),
		PageNum: page,
	}
	if p_page.page == nil {
		return nil
	}

	var width, height C.double
	C.poppler_page_get_size(p_page.page, &width, &height)
	p_page.Width = float64(width)
	p_page.Height = float64(height)

	return p_page
}

// LoadPage returns the zero-indexed page.
func (pdf *Document) LoadPage(index int) (search.Page, error) {
	page := pdf.GetPage(index)
	if page == nil {
		return nil, fmt.Errorf("page %d is out of range of %s (%d pages)", index, pdf.Path, pdf.pageCount)
	}
	return page, nil
}

func (page *Page) Close() {
	if page.page != nil {
		C.g_object_unref(C.gpointer(page.page))
		page.page = nil
	}
}

// skip all arrows
var skipTokens = []rune{0x25B6, 0x25B8, 0x25B7, 0x25B9, 0x25BA, 0x25BB, 0x25C0, 0x25C2, 0x25C1, 0x25C3, 0x25C4, 0x25C5, 0x25C6, 0x25C7, 0x25C8, 0x25C9, 0x25CA, 0x25CB, 0x25CC, 0x25CD, 0x25CE, 0x25CF, 0x25D0, 0x25D1, 0x25D2, 0x25D3, 0x25D4, 0x25D5, 0x25D6, 0x25D7, 0x25D8, 0x25D9, 0x25DA, 0x25DB, 0x25DC, 0x25DD, 0x25DE, 0x25DF, 0x25E0, 0x25E1, 0x25E2, 0x25E3, 0x25E4, 0x25E5, 0x25E6, 0x25E7, 0x25E8, 0x25E9, 0x25EA, 0x25EB, 0x25EC, 0x25ED, 0x25EE, 0x25EF, 0x25F0, 0x25F1, 0x25F2, 0x25F3, 0x25F4, 0x25F5, 0x25F6, 0x25F7, 0x25F8, 0x25F9, 0x25FA, 0x25FB, 0x25FC, 0x25FD, 0x25FE, 0x25FF, 0x0080, 0x0089}

// Get the text content of the page.
func (page *Page) Text() string {
	g_text := C.poppler_page_get_text(page.page)
	if g_text == nil {
		return ""
	}
	defer C.g_free(C.gpointer(g_text))

	return cleanText(C.GoString((*C.char)(g_text)))
}

func cleanText(text string) string {
	return strings.Map(func(r rune) rune {
		for _, token := range skipTokens {
			if r == token {
				return -1
			}
		}
		return r
	}, text)
}

// SearchFor returns the rectangles of every occurrence of needle on the page
// in document order, with a top-left origin.
func (page *Page) SearchFor(needle string) []alg.Rect {
	if needle == "" {
		return nil
	}

	c_needle := C.CString(needle)
	defer C.free(unsafe.Pointer(c_needle))

	var count C.int
	found := C.find_text(page.page, c_needle, &count)
	if found == nil {
		return nil
	}
	defer C.free(unsafe.Pointer(found))

	coords := unsafe.Slice((*float64)(unsafe.Pointer(found)), int(count)*4)
	return toPageSpace(coords, page.Height)
}

// toPageSpace converts (x1, y1, x2, y2) quads in PDF user space into
// rectangles with a top-left origin on a page of the given height.
func toPageSpace(coords []float64, height float64) []alg.Rect {
	rects := make([]alg.Rect, 0, len(coords)/4)
	for i := 0; i+3 < len(coords); i += 4 {
		x1, y1, x2, y2 := coords[i], coords[i+1], coords[i+2], coords[i+3]
		rects = append(rects, alg.Rect{
			X0: min(x1, x2),
			Y0: height - max(y1, y2),
			X1: max(x1, x2),
			Y1: height - min(y1, y2),
		})
	}
	return rects
}

// Render rasterizes the page at the document DPI into a PNG at output,
// outlining each rectangle in red.
func (page *Page) Render(output string, outlines []alg.Rect) error {
	c_output := C.CString(output)
	defer C.free(unsafe.Pointer(c_output))

	coords := make([]C.double, 0, len(outlines)*4)
	for _, r := range outlines {
		coords = append(coords, C.double(r.X0), C.double(r.Y0), C.double(r.X1), C.double(r.Y1))
	}

	var c_rects *C.double
	if len(coords) > 0 {
		c_rects = &coords[0]
	}

	ok := C.render_highlighted(page.page, C.double(page.doc.DPI), c_rects, C.int(len(outlines)), c_output)
	if !bool(ok) {
		return fmt.Errorf("%w: page %d of %s", ErrRender, page.PageNum+1, page.doc.Path)
	}
	return nil
}
