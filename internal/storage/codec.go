package storage

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// decodeIDs parses one id per line. Blank lines are skipped and duplicates
// are kept (the registry dedupes); anything else that is not a non-zero
// integer is ErrCorrupt.
func decodeIDs(r io.Reader) ([]int64, error) {
	var out []int64
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		s := strings.TrimSpace(sc.Text())
		if s == "" {
			continue
		}
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil || id == 0 {
			return nil, fmt.Errorf("%w: line %d: %q", ErrCorrupt, line, s)
		}
		out = append(out, id)
	}
	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, fmt.Errorf("%w: line %d: %v", ErrCorrupt, line+1, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return out, nil
}

// encodeIDs writes ids sorted, deduped, one per line.
func encodeIDs(ids []int64) []byte {
	cp := append([]int64(nil), ids...)
	sort.Slice(cp, func(i, j int) bool { return cp[i] < cp[j] })
	var b bytes.Buffer
	for i, id := range cp {
		if i > 0 && cp[i-1] == id {
			continue
		}
		b.WriteString(strconv.FormatInt(id, 10))
		b.WriteByte('\n')
	}
	return b.Bytes()
}
