// Package watermark stamps a logo onto every page of a PDF.
package watermark

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"go.uber.org/zap"
)

// ErrLogoNotFound is returned when the configured logo file does not exist.
var ErrLogoNotFound = errors.New("watermark logo not found")

// Config controls placement and appearance of the logo.
type Config struct {
	LogoPath string
	// Width is the rendered logo width in points; height follows the aspect ratio.
	Width int
	// Margin is the inset from the bottom-right corner in points.
	Margin  int
	Opacity float64
}

// Stamper applies the logo watermark to PDFs.
type Stamper struct {
	cfg    Config
	conf   *model.Configuration
	logger *zap.Logger
}

// New creates a Stamper, filling zero values with defaults.
func New(cfg Config, logger *zap.Logger) *Stamper {
	if cfg.Width <= 0 {
		cfg.Width = 120
	}
	if cfg.Margin < 0 {
		cfg.Margin = 0
	}
	if cfg.Opacity <= 0 || cfg.Opacity > 1 {
		cfg.Opacity = 0.6
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Stamper{cfg: cfg, conf: conf, logger: logger.Named("watermark")}
}

// Apply stamps the logo onto every page of the PDF at pdfPath, replacing the file.
// It returns ErrLogoNotFound when the logo is absent and leaves the PDF untouched.
func (s *Stamper) Apply(pdfPath string) error {
	logo, err := s.loadLogo()
	if err != nil {
		return err
	}

	src, err := os.ReadFile(filepath.Clean(pdfPath))
	if err != nil {
		return fmt.Errorf("read pdf %s: %w", pdfPath, err)
	}

	wm, err := api.ImageWatermarkForReader(bytes.NewReader(logo), s.description(), true, false, types.POINTS)
	if err != nil {
		return fmt.Errorf("build watermark: %w", err)
	}

	var out bytes.Buffer
	if err := api.AddWatermarks(bytes.NewReader(src), &out, nil, wm, s.conf); err != nil {
		return fmt.Errorf("stamp %s: %w", filepath.Base(pdfPath), err)
	}
	if err := replaceFile(pdfPath, out.Bytes()); err != nil {
		return err
	}
	s.logger.Debug("Watermark applied", zap.String("file", filepath.Base(pdfPath)))
	return nil
}

// PageCount reports the number of pages in the PDF at path.
func (s *Stamper) PageCount(path string) (int, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return 0, fmt.Errorf("read pdf %s: %w", path, err)
	}
	n, err := api.PageCount(bytes.NewReader(data), s.conf)
	if err != nil {
		return 0, fmt.Errorf("count pages: %w", err)
	}
	return n, nil
}

// description renders the pdfcpu watermark description: bottom-right anchor,
// inset by the margin, absolute scale since the logo is pre-sized.
func (s *Stamper) description() string {
	return fmt.Sprintf("position:br, offset:%d %d, scalefactor:1 abs, opacity:%.2f, rotation:0",
		-s.cfg.Margin, s.cfg.Margin, s.cfg.Opacity)
}

// loadLogo decodes the logo, scales it to the target width and re-encodes it as PNG.
func (s *Stamper) loadLogo() ([]byte, error) {
	raw, err := os.ReadFile(filepath.Clean(s.cfg.LogoPath))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrLogoNotFound, s.cfg.LogoPath)
		}
		return nil, fmt.Errorf("read logo: %w", err)
	}
	img, err := decodeLogo(s.cfg.LogoPath, raw)
	if err != nil {
		return nil, err
	}
	scaled := imaging.Resize(img, s.cfg.Width, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return nil, fmt.Errorf("encode logo: %w", err)
	}
	return buf.Bytes(), nil
}

type decoder struct {
	name   string
	decode func([]byte) (image.Image, error)
}

var (
	pngDecoder  = decoder{"png", func(b []byte) (image.Image, error) { return png.Decode(bytes.NewReader(b)) }}
	jpegDecoder = decoder{"jpeg", func(b []byte) (image.Image, error) { return jpeg.Decode(bytes.NewReader(b)) }}
)

// decodeLogo tries the codec implied by the file extension first and the other
// one second, so a JPEG saved as .png still decodes.
func decodeLogo(path string, raw []byte) (image.Image, error) {
	order := []decoder{pngDecoder, jpegDecoder}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		order = []decoder{jpegDecoder, pngDecoder}
	}
	var errs []error
	for _, d := range order {
		img, err := d.decode(raw)
		if err == nil {
			return img, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", d.name, err))
	}
	return nil, fmt.Errorf("decode logo %s: %w", filepath.Base(path), errors.Join(errs...))
}

// replaceFile writes data next to path and renames it into place.
func replaceFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
