package raster

import (
	"fmt"
	"image"
	"image/png"
	"os"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"

	"grayevo/internal/model"
)

// ToGray wraps a copy of the candidate as an image.Gray.
func ToGray(candidate model.Candidate, width, height int) (*image.Gray, error) {
	if len(candidate) != width*height {
		return nil, fmt.Errorf("candidate length %d does not match %dx%d", len(candidate), width, height)
	}
	img := image.NewGray(image.Rect(0, 0, width, height))
	copy(img.Pix, candidate)
	return img, nil
}

// ToRGBA replicates each gray sample into R, G and B with full alpha.
func ToRGBA(candidate model.Candidate, width, height int) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	if err := FillRGBA(img.Pix, candidate); err != nil {
		return nil, err
	}
	return img, nil
}

// FillRGBA writes candidate into an RGBA pixel slice of 4*len(candidate).
func FillRGBA(pix []byte, candidate model.Candidate) error {
	if len(pix) != 4*len(candidate) {
		return fmt.Errorf("rgba buffer length %d does not match %d samples", len(pix), len(candidate))
	}
	for i, v := range candidate {
		o := 4 * i
		pix[o] = v
		pix[o+1] = v
		pix[o+2] = v
		pix[o+3] = 0xff
	}
	return nil
}

// Scale enlarges a gray image by an integer factor with nearest-neighbour
// sampling so individual samples stay visible.
func Scale(src *image.Gray, factor int) *image.Gray {
	if factor <= 1 {
		return src
	}
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

func ExportPNG(path string, candidate model.Candidate, width, height, scale int) error {
	img, err := ToGray(candidate, width, height)
	if err != nil {
		return fmt.Errorf("%w: export %s: %v", ErrIO, path, err)
	}
	return writeImage(path, Scale(img, scale), func(f *os.File, img image.Image) error {
		return png.Encode(f, img)
	})
}

func ExportBMP(path string, candidate model.Candidate, width, height, scale int) error {
	img, err := ToGray(candidate, width, height)
	if err != nil {
		return fmt.Errorf("%w: export %s: %v", ErrIO, path, err)
	}
	return writeImage(path, Scale(img, scale), func(f *os.File, img image.Image) error {
		return bmp.Encode(f, img)
	})
}

func writeImage(path string, img image.Image, encode func(*os.File, image.Image) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrIO, path, err)
	}
	if err := encode(f, img); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("%w: encode %s: %v", ErrIO, path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", ErrIO, path, err)
	}
	return nil
}
