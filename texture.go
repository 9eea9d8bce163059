package taichi

import (
	"github.com/gogpu/taichi/capi"
)

// Texture is an image bound to an optional sampler, the form images take as
// kernel arguments. A Texture owns one reference to its image and sampler.
type Texture struct {
	handle
	image   *Image
	sampler *Sampler
}

// TextureBuilder describes a texture: an image allocation plus a sampler.
// Image defaults are those of ImageBuilder; the sampler defaults to the
// library's.
type TextureBuilder struct {
	image   *ImageBuilder
	sampler *Sampler
}

// AllocateTexture starts describing a texture on rt.
func (rt *Runtime) AllocateTexture() *TextureBuilder {
	return &TextureBuilder{image: rt.AllocateImage()}
}

// Dimension sets the image dimensionality.
func (b *TextureBuilder) Dimension(d capi.ImageDimension) *TextureBuilder {
	b.image.Dimension(d)
	return b
}

// Extent sets the full image extent.
func (b *TextureBuilder) Extent(e capi.ImageExtent) *TextureBuilder {
	b.image.Extent(e)
	return b
}

// Width sets the width in texels.
func (b *TextureBuilder) Width(w uint32) *TextureBuilder {
	b.image.Width(w)
	return b
}

// Height sets the height in texels.
func (b *TextureBuilder) Height(h uint32) *TextureBuilder {
	b.image.Height(h)
	return b
}

// Depth sets the depth in texels.
func (b *TextureBuilder) Depth(d uint32) *TextureBuilder {
	b.image.Depth(d)
	return b
}

// ArrayLayers sets the number of array layers.
func (b *TextureBuilder) ArrayLayers(n uint32) *TextureBuilder {
	b.image.ArrayLayers(n)
	return b
}

// MipLevels sets the number of mip levels.
func (b *TextureBuilder) MipLevels(n uint32) *TextureBuilder {
	b.image.MipLevels(n)
	return b
}

// Format sets the texel format.
func (b *TextureBuilder) Format(f capi.Format) *TextureBuilder {
	b.image.Format(f)
	return b
}

// Usage replaces the image usage flags.
func (b *TextureBuilder) Usage(u capi.ImageUsage) *TextureBuilder {
	b.image.Usage(u)
	return b
}

// ExportSharing marks the image as exportable.
func (b *TextureBuilder) ExportSharing(v bool) *TextureBuilder {
	b.image.ExportSharing(v)
	return b
}

// Sampler attaches s. The texture takes its own reference; nil selects the
// library default.
func (b *TextureBuilder) Sampler(s *Sampler) *TextureBuilder {
	b.sampler = s
	return b
}

// Build allocates the image and assembles the texture.
func (b *TextureBuilder) Build() (*Texture, error) {
	if b.sampler != nil && b.sampler.isClosed() {
		return nil, errClosed("sampler")
	}
	img, err := b.image.Build()
	if err != nil {
		return nil, err
	}
	defer img.Close()
	return NewTexture(img, b.sampler)
}

// NewTexture assembles a texture from an existing image and an optional
// sampler. The texture takes its own references to both.
func NewTexture(img *Image, s *Sampler) (*Texture, error) {
	if img == nil {
		return nil, newError(capi.ErrorArgumentNull, "texture image is nil")
	}
	if img.isClosed() {
		return nil, errClosed("image")
	}
	if s != nil && s.isClosed() {
		return nil, errClosed("sampler")
	}
	t := &Texture{image: img.Clone()}
	if s != nil {
		t.sampler = s.Clone()
	}
	return t, nil
}

// Clone returns another texture sharing the image and sampler.
func (t *Texture) Clone() (*Texture, error) {
	if t.isClosed() {
		return nil, errClosed("texture")
	}
	return NewTexture(t.image, t.sampler)
}

// Close releases the texture's image and sampler references. Further calls
// are no-ops.
func (t *Texture) Close() {
	if !t.close() {
		return
	}
	t.image.Close()
	if t.sampler != nil {
		t.sampler.Close()
	}
}

// Image returns the texture image. The handle is owned by the texture.
func (t *Texture) Image() *Image { return t.image }

// Sampler returns the attached sampler, or nil for the library default.
func (t *Texture) Sampler() *Sampler { return t.sampler }

// Dimension returns the image dimensionality.
func (t *Texture) Dimension() capi.ImageDimension { return t.image.Dimension() }

// Extent returns the image extent.
func (t *Texture) Extent() capi.ImageExtent { return t.image.Extent() }

// Format returns the texel format.
func (t *Texture) Format() capi.Format { return t.image.Format() }

// Descriptor returns the texture in kernel argument form.
func (t *Texture) Descriptor() capi.Texture {
	d := capi.Texture{
		Image:     t.image.Handle(),
		Dimension: t.Dimension(),
		Extent:    t.Extent(),
		Format:    t.Format(),
	}
	if t.sampler != nil {
		d.Sampler = t.sampler.Handle()
	}
	return d
}
