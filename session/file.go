package session

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/soypat/invertify"
	"github.com/soypat/invertify/codec"
)

// File is what a file picker hands over: the raw bytes, the declared MIME
// type, the file name and the byte size.
type File struct {
	Data     []byte
	MIMEType string
	Name     string
	Size     int64
}

// Policy decides which selected files are processed. MaxPixels bounds the
// decoded size and is enforced while processing, see [codec.Decode].
type Policy struct {
	MaxBytes  int64
	MaxPixels int64
	MIMETypes []string
}

const DefaultMaxBytes = 5 * 1024 * 1024

// DefaultPolicy accepts JPEG, PNG and GIF files up to 5 MiB and
// [codec.DefaultMaxPixels].
func DefaultPolicy() Policy {
	return Policy{
		MaxBytes:  DefaultMaxBytes,
		MaxPixels: codec.DefaultMaxPixels,
		MIMETypes: []string{"image/jpeg", "image/jpg", "image/png", "image/gif"},
	}
}

// Check returns a [invertify.ValidationError] when f must not be processed.
// The type is checked before the size.
func (p Policy) Check(f File) error {
	if !slices.Contains(p.MIMETypes, f.MIMEType) {
		return &invertify.ValidationError{
			Message: invertify.MsgUnsupportedType,
			Err:     fmt.Errorf("%w: %q", invertify.ErrUnsupportedType, f.MIMEType),
		}
	}
	if f.Size > p.MaxBytes {
		return &invertify.ValidationError{
			Message: invertify.MsgTooLarge,
			Err:     fmt.Errorf("%w: %d bytes exceeds %d", invertify.ErrTooLarge, f.Size, p.MaxBytes),
		}
	}
	return nil
}

// FileFromBytes builds a File for data named name. The MIME type is derived
// from the extension and sniffed from the content when the extension is
// unknown.
func FileFromBytes(name string, data []byte) File {
	f := File{
		Data:     data,
		Name:     name,
		Size:     int64(len(data)),
		MIMEType: typeByExtension(name),
	}
	if f.MIMEType == "" {
		f.MIMEType = sniff(data)
	}
	return f
}

// FileFromPath builds a File from disk like [FileFromBytes]. Files larger than
// maxBytes are not read so that [Policy.Check] rejects them on size alone.
func FileFromPath(path string, maxBytes int64) (File, error) {
	fp, err := os.Open(path)
	if err != nil {
		return File{}, err
	}
	defer fp.Close()
	info, err := fp.Stat()
	if err != nil {
		return File{}, err
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%s is a directory", path)
	}
	name := filepath.Base(path)
	if info.Size() > maxBytes {
		return File{Name: name, Size: info.Size(), MIMEType: typeByExtension(name)}, nil
	}
	data, err := io.ReadAll(io.LimitReader(fp, maxBytes+1))
	if err != nil {
		return File{}, fmt.Errorf("read %s: %w", path, err)
	}
	return FileFromBytes(name, data), nil
}

func typeByExtension(path string) string {
	t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mt, _, err := mime.ParseMediaType(t); err == nil {
		return mt
	}
	return ""
}

func sniff(data []byte) string {
	mt, _, err := mime.ParseMediaType(http.DetectContentType(data))
	if err != nil {
		return "application/octet-stream"
	}
	return mt
}

// DownloadName returns the export name for an original file name: the last
// extension is dropped and "_inverted.png" appended, whatever the source format.
func DownloadName(name string) string {
	parts := strings.Split(name, ".")
	if len(parts) > 1 {
		parts = parts[:len(parts)-1]
	} else {
		parts = parts[:0]
	}
	return strings.Join(parts, ".") + "_inverted.png"
}
