package collector

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"unicode/utf16"

	"github.com/richardlehane/mscfb"
)

// BIFF8 record types read from legacy (.xls) workbooks.
const (
	recBOF        = 0x0809
	recEOF        = 0x000A
	recFilePass   = 0x002F
	recBoundSheet = 0x0085
	recFormula    = 0x0006
	recMulRK      = 0x00BD
	recNumber     = 0x0203
	recRK         = 0x027E

	biff8Version = 0x0600
)

var oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

type biffRecord struct {
	id   uint16
	data []byte
}

type biffSheet struct {
	name   string
	offset int
}

// legacySheetRows returns the numeric cells of the named worksheet formatted
// as text and indexed by row and column. Text cells are left empty.
func legacySheetRows(body []byte, sheet string) ([][]string, error) {
	stream, err := workbookStream(body)
	if err != nil {
		return nil, err
	}
	sheets, err := biffSheets(stream)
	if err != nil {
		return nil, err
	}
	for _, s := range sheets {
		if s.name == sheet {
			return biffNumericRows(stream, s.offset)
		}
	}
	return nil, fmt.Errorf("sheet %s not found", sheet)
}

// workbookStream extracts the BIFF stream from the compound file container.
func workbookStream(body []byte) ([]byte, error) {
	doc, err := mscfb.New(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("open compound file: %w", err)
	}
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		if entry.Name != "Workbook" && entry.Name != "Book" {
			continue
		}
		stream := make([]byte, entry.Size)
		if _, err := io.ReadFull(entry, stream); err != nil {
			return nil, fmt.Errorf("read %s stream: %w", entry.Name, err)
		}
		return stream, nil
	}
	return nil, errors.New("compound file has no Workbook stream")
}

func nextRecord(stream []byte, pos int) (biffRecord, int, bool) {
	if pos < 0 || pos+4 > len(stream) {
		return biffRecord{}, pos, false
	}
	id := binary.LittleEndian.Uint16(stream[pos:])
	end := pos + 4 + int(binary.LittleEndian.Uint16(stream[pos+2:]))
	if end > len(stream) {
		return biffRecord{}, pos, false
	}
	return biffRecord{id: id, data: stream[pos+4 : end]}, end, true
}

// biffSheets reads the sheet directory from the workbook globals substream.
func biffSheets(stream []byte) ([]biffSheet, error) {
	rec, pos, ok := nextRecord(stream, 0)
	if !ok || rec.id != recBOF || len(rec.data) < 4 {
		return nil, errors.New("workbook stream does not start with BOF")
	}
	if v := binary.LittleEndian.Uint16(rec.data); v != biff8Version {
		return nil, fmt.Errorf("unsupported BIFF version %#04x", v)
	}

	var sheets []biffSheet
	for {
		rec, pos, ok = nextRecord(stream, pos)
		if !ok {
			return nil, errors.New("truncated workbook globals")
		}
		switch rec.id {
		case recEOF:
			return sheets, nil
		case recFilePass:
			return nil, errors.New("workbook is encrypted")
		case recBoundSheet:
			if len(rec.data) < 8 {
				continue
			}
			sheets = append(sheets, biffSheet{
				name:   shortXLString(rec.data[6:]),
				offset: int(binary.LittleEndian.Uint32(rec.data)),
			})
		}
	}
}

// biffNumericRows collects NUMBER, RK, MULRK and cached FORMULA results of the
// worksheet substream at offset. Embedded substreams such as charts are skipped.
func biffNumericRows(stream []byte, offset int) ([][]string, error) {
	rec, pos, ok := nextRecord(stream, offset)
	if !ok || rec.id != recBOF {
		return nil, fmt.Errorf("no worksheet at offset %d", offset)
	}

	var rows [][]string
	set := func(row, col int, v float64) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return
		}
		for len(rows) <= row {
			rows = append(rows, nil)
		}
		for len(rows[row]) <= col {
			rows[row] = append(rows[row], "")
		}
		rows[row][col] = strconv.FormatFloat(v, 'f', -1, 64)
	}

	depth := 0
	for {
		rec, pos, ok = nextRecord(stream, pos)
		if !ok {
			return nil, errors.New("truncated worksheet")
		}
		d := rec.data
		switch rec.id {
		case recBOF:
			depth++
			continue
		case recEOF:
			if depth == 0 {
				return rows, nil
			}
			depth--
			continue
		}
		if depth > 0 || len(d) < 6 {
			continue
		}
		row := int(binary.LittleEndian.Uint16(d))
		col := int(binary.LittleEndian.Uint16(d[2:]))

		switch rec.id {
		case recNumber:
			if len(d) >= 14 {
				set(row, col, math.Float64frombits(binary.LittleEndian.Uint64(d[6:])))
			}
		case recRK:
			if len(d) >= 10 {
				set(row, col, decodeRK(binary.LittleEndian.Uint32(d[6:])))
			}
		case recMulRK:
			// 6-byte (xf, rk) pairs followed by the last column index.
			for off := 4; off+6 <= len(d)-2; off += 6 {
				set(row, col, decodeRK(binary.LittleEndian.Uint32(d[off+2:])))
				col++
			}
		case recFormula:
			// A cached result ending in 0xFFFF is a string, boolean or error.
			if len(d) >= 14 && !(d[12] == 0xFF && d[13] == 0xFF) {
				set(row, col, math.Float64frombits(binary.LittleEndian.Uint64(d[6:])))
			}
		}
	}
}

// decodeRK unpacks the compressed RK number form.
func decodeRK(rk uint32) float64 {
	var v float64
	if rk&0x02 != 0 {
		v = float64(int32(rk) >> 2)
	} else {
		v = math.Float64frombits(uint64(rk&0xFFFFFFFC) << 32)
	}
	if rk&0x01 != 0 {
		v /= 100
	}
	return v
}

// shortXLString decodes a string with a one-byte length and a flags byte
// selecting compressed (Latin-1) or UTF-16 characters.
func shortXLString(b []byte) string {
	if len(b) < 2 {
		return ""
	}
	n, wide := int(b[0]), b[1]&0x01 != 0
	b = b[2:]
	if !wide {
		if n > len(b) {
			n = len(b)
		}
		runes := make([]rune, n)
		for i := range runes {
			runes[i] = rune(b[i])
		}
		return string(runes)
	}
	if 2*n > len(b) {
		n = len(b) / 2
	}
	units := make([]uint16, n)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(b[2*i:])
	}
	return string(utf16.Decode(units))
}
