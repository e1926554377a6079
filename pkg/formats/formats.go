// Package formats decodes 3D mesh assets into scene graphs.
//
// Supported families: glTF 2.0 (JSON with embedded buffers, and GLB),
// STL (ASCII and binary), and OBJ / PLY / 3DS through fauxgl.
package formats

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/Faultbox/meshpreview/pkg/scene"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported asset format")
	ErrEmptyAsset        = errors.New("empty asset")
)

// Format identifies an asset encoding.
type Format int

const (
	FormatUnknown Format = iota
	FormatGLB
	FormatGLTF
	FormatSTL
	FormatOBJ
	FormatPLY
	Format3DS
)

// String returns the conventional file extension of the format.
func (f Format) String() string {
	switch f {
	case FormatGLB:
		return "glb"
	case FormatGLTF:
		return "gltf"
	case FormatSTL:
		return "stl"
	case FormatOBJ:
		return "obj"
	case FormatPLY:
		return "ply"
	case Format3DS:
		return "3ds"
	default:
		return "unknown"
	}
}

var extFormats = map[string]Format{
	".glb":  FormatGLB,
	".gltf": FormatGLTF,
	".stl":  FormatSTL,
	".obj":  FormatOBJ,
	".ply":  FormatPLY,
	".3ds":  Format3DS,
}

var contentTypeFormats = map[string]Format{
	"model/gltf-binary": FormatGLB,
	"model/gltf+json":   FormatGLTF,
	"model/stl":         FormatSTL,
	"model/x.stl-ascii": FormatSTL,
	"model/obj":         FormatOBJ,
}

// Detect picks the format of an asset. Magic bytes win over the name,
// the name wins over the content type, and content sniffing is the last
// resort.
func Detect(name, contentType string, data []byte) Format {
	if bytes.HasPrefix(data, []byte("glTF")) {
		return FormatGLB
	}
	if bytes.HasPrefix(data, []byte("ply\n")) || bytes.HasPrefix(data, []byte("ply\r\n")) {
		return FormatPLY
	}

	if f, ok := extFormats[strings.ToLower(path.Ext(stripQuery(name)))]; ok {
		return f
	}

	ct := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	if f, ok := contentTypeFormats[ct]; ok {
		return f
	}

	trimmed := bytes.TrimLeft(data, " \t\r\n")
	switch {
	case bytes.HasPrefix(trimmed, []byte("{")) && bytes.Contains(data, []byte(`"asset"`)):
		return FormatGLTF
	case bytes.HasPrefix(trimmed, []byte("solid")):
		return FormatSTL
	case isBinarySTL(data):
		return FormatSTL
	}
	return FormatUnknown
}

// Decode parses data into a scene. name is used for format detection and
// as the scene name.
func Decode(name, contentType string, data []byte) (*scene.Scene, error) {
	if len(data) == 0 {
		return nil, ErrEmptyAsset
	}

	format := Detect(name, contentType, data)
	sceneName := path.Base(stripQuery(name))

	var (
		s   *scene.Scene
		err error
	)
	switch format {
	case FormatGLB, FormatGLTF:
		s, err = DecodeGLTF(sceneName, data)
	case FormatSTL:
		s, err = DecodeSTL(sceneName, data)
	case FormatOBJ, FormatPLY, Format3DS:
		s, err = DecodeFauxGL(sceneName, format, data)
	default:
		return nil, fmt.Errorf("%s: %w", sceneName, ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s as %s: %w", sceneName, format, err)
	}
	return s, nil
}

// isBinarySTL checks the triangle count in the 84-byte header against the
// payload length.
func isBinarySTL(data []byte) bool {
	if len(data) < 84 {
		return false
	}
	n := uint32(data[80]) | uint32(data[81])<<8 | uint32(data[82])<<16 | uint32(data[83])<<24
	return uint64(len(data)) == 84+uint64(n)*50
}

func stripQuery(name string) string {
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		return name[:i]
	}
	return name
}
