package mat73

import (
	"encoding/binary"
	"strings"

	"golang.org/x/text/encoding/unicode"

	"github.com/scigolib/mat73/internal/container"
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// decodeText decodes a char payload. MATLAB writes one uint16 code unit per
// character; uint8 codes are read as Latin-1. A matrix with several rows and
// columns becomes its rows joined by newlines.
func decodeText(ds *container.Dataset) (Text, error) {
	switch ds.Type.Class {
	case container.ClassString:
		a := container.Attribute{Type: ds.Type, Raw: ds.Raw}
		s, _ := a.Text()
		return Text(s), nil
	case container.ClassInteger:
		return decodeCodes(ds)
	}
	s, err := utf16le.NewDecoder().String(string(ds.Raw))
	if err != nil {
		return "", err
	}
	return Text(strings.ReplaceAll(s, "\uFFFD", "")), nil
}

func decodeCodes(ds *container.Dataset) (Text, error) {
	n := ds.Len()
	codes := make([]uint64, n)
	for i := range codes {
		codes[i], _ = ds.Uint(i)
	}

	dims := matlabDims(ds.Dims)
	if len(dims) == 2 && dims[0] > 1 && dims[1] > 1 {
		rows, cols := dims[0], dims[1]
		lines := make([]string, rows)
		row := make([]uint64, cols)
		for i := range lines {
			for j := range row {
				row[j] = codes[i+j*rows]
			}
			s, err := unitsToString(row, ds.Type.Size)
			if err != nil {
				return "", err
			}
			lines[i] = s
		}
		return Text(strings.Join(lines, "\n")), nil
	}

	s, err := unitsToString(codes, ds.Type.Size)
	return Text(s), err
}

func unitsToString(codes []uint64, size int) (string, error) {
	if size == 1 {
		runes := make([]rune, len(codes))
		for i, c := range codes {
			runes[i] = rune(c)
		}
		return string(runes), nil
	}
	buf := make([]byte, 0, 2*len(codes))
	for _, c := range codes {
		//nolint:gosec // G115: code units are 16 bits wide
		buf = binary.LittleEndian.AppendUint16(buf, uint16(c))
	}
	return utf16le.NewDecoder().String(string(buf))
}
