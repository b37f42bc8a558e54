package log

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"iter"
	"os"
	"reflect"
	"strconv"
	"time"

	"github.com/toon-format/toon-go"
)

var hdrPrefix = []byte("--- ")

// EventRecord is an event read back from events file
type EventRecord struct {
	Name      string
	Timestamp time.Time
	// toon-encoded key / value pairs
	Data []byte
}

// simpleTypeToStr converts simple types to string
// panics if v is of complex type
func simpleTypeToStr(v any) string {
	rt := reflect.TypeOf(v)
	kind := rt.Kind()
	switch kind {
	case reflect.Array, reflect.Slice, reflect.Struct, reflect.Map, reflect.Chan, reflect.Interface, reflect.Pointer:
		panic(fmt.Sprintf("toStr: value is of kind %v", kind))
	case reflect.String:
		return v.(string)
	}
	return fmt.Sprintf("%v", v)
}

// marshalEvent formats a record as:
// "--- ${size} ${unix_ms} ${name}\n${data}\n"
// the trailing newline is only added if data doesn't end with one
func marshalEvent(name string, t time.Time, d []byte) []byte {
	var wb bytes.Buffer
	wb.Grow(len(hdrPrefix) + len(name) + len(d) + 32)
	wb.Write(hdrPrefix)
	wb.WriteString(strconv.Itoa(len(d)))
	wb.WriteByte(' ')
	wb.WriteString(strconv.FormatInt(t.UnixMilli(), 10))
	if name != "" {
		wb.WriteByte(' ')
		wb.WriteString(name)
	}
	wb.WriteByte('\n')
	if n := len(d); n > 0 {
		wb.Write(d)
		if d[n-1] != '\n' {
			wb.WriteByte('\n')
		}
	}
	return wb.Bytes()
}

// Event logs event with key / value pairs encoded as toon
func Event(name string, vals ...any) {
	n := len(vals)
	if n%2 != 0 {
		panic(fmt.Sprintf("log.Event('%s'): odd number of values", name))
	}
	var d []byte
	if n > 0 {
		m := map[string]any{}
		for i := 0; i < n; i += 2 {
			k := simpleTypeToStr(vals[i])
			m[k] = vals[i+1]
		}
		d, _ = toon.Marshal(m)
	}
	_ = eventsLog.Write(marshalEvent(name, time.Now().UTC(), d))
}

func EventWithDuration(name string, dur time.Duration, vals ...any) {
	vals = append(vals, "durms", dur.Milliseconds())
	Event(name, vals...)
}

func parseEventHeader(hdr []byte) (size int, ts time.Time, name string, err error) {
	rest := bytes.TrimPrefix(bytes.TrimSuffix(hdr, []byte{'\n'}), hdrPrefix)
	parts := bytes.SplitN(rest, []byte{' '}, 3)
	if len(parts) < 2 {
		return 0, ts, "", fmt.Errorf("unexpected header '%s'", hdr)
	}
	size, err = strconv.Atoi(string(parts[0]))
	if err != nil || size < 0 {
		return 0, ts, "", fmt.Errorf("unexpected header '%s'", hdr)
	}
	ms, err := strconv.ParseInt(string(parts[1]), 10, 64)
	if err != nil {
		return 0, ts, "", fmt.Errorf("unexpected header '%s'", hdr)
	}
	if len(parts) == 3 {
		name = string(parts[2])
	}
	return size, time.UnixMilli(ms).UTC(), name, nil
}

// ReadEvents iterates over events in events file written by Event
func ReadEvents(path string) (iter.Seq[*EventRecord], func() error) {
	var iterErr error
	seq := func(yield func(*EventRecord) bool) {
		f, err := os.Open(path)
		if err != nil {
			iterErr = err
			return
		}
		defer f.Close()
		r := bufio.NewReader(f)
		for {
			hdr, err := r.ReadBytes('\n')
			if err == io.EOF && len(hdr) == 0 {
				return
			}
			if err != nil {
				iterErr = err
				return
			}
			size, ts, name, err := parseEventHeader(hdr)
			if err != nil {
				iterErr = err
				return
			}
			rec := &EventRecord{
				Name:      name,
				Timestamp: ts,
				Data:      make([]byte, size),
			}
			if _, err = io.ReadFull(r, rec.Data); err != nil {
				iterErr = err
				return
			}
			if size > 0 && rec.Data[size-1] != '\n' {
				if _, err = r.Discard(1); err != nil {
					iterErr = err
					return
				}
			}
			if !yield(rec) {
				return
			}
		}
	}
	return seq, func() error { return iterErr }
}
