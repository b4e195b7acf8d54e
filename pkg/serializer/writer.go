// Package serializer renders command output in JSON, YAML, or table form to
// stdout or a file.
package serializer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"
	"text/tabwriter"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

// Format selects the output encoding.
type Format string

const (
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatTable Format = "table"
)

// IsUnknown reports whether the format is not one of the supported encodings.
func (f Format) IsUnknown() bool {
	switch f {
	case FormatJSON, FormatYAML, FormatTable:
		return false
	}
	return true
}

// numPrinter groups digits in large integers for table output so token
// counts and costs stay readable.
var numPrinter = message.NewPrinter(language.English)

// Writer serializes values in a fixed format to an underlying writer.
type Writer struct {
	format Format
	out    io.Writer
	closer io.Closer

	// pendingPath defers file creation until the first write.
	pendingPath string
}

// NewWriter returns a Writer for the given format. Unknown formats fall back
// to JSON.
func NewWriter(format Format, w io.Writer) *Writer {
	if format.IsUnknown() {
		format = FormatJSON
	}
	return &Writer{format: format, out: w}
}

// NewFileWriterOrStdout returns a Writer targeting the given file path, or
// stdout when the path is empty or "-". File creation is deferred to the
// first Serialize call so a failed command leaves no empty output file.
func NewFileWriterOrStdout(format Format, path string) *Writer {
	if format.IsUnknown() {
		format = FormatJSON
	}
	if path == "" || path == "-" {
		return &Writer{format: format, out: os.Stdout}
	}
	return &Writer{format: format, pendingPath: path}
}

// Serialize writes v in the configured format.
func (w *Writer) Serialize(_ context.Context, v any) error {
	if w.out == nil {
		f, err := os.Create(w.pendingPath)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		w.out = f
		w.closer = f
	}

	switch w.format {
	case FormatYAML:
		data, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to serialize to yaml: %w", err)
		}
		_, err = w.out.Write(data)
		return err
	case FormatTable:
		return w.writeTable(v)
	default:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to serialize to json: %w", err)
		}
		data = append(data, '\n')
		_, err = w.out.Write(data)
		return err
	}
}

// Close releases the underlying file, if any.
func (w *Writer) Close() error {
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

func (w *Writer) writeTable(v any) error {
	rows := make([][2]string, 0, 16)
	flatten("", reflect.ValueOf(v), &rows)

	tw := tabwriter.NewWriter(w.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FIELD\tVALUE")
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%s\n", row[0], row[1])
	}
	return tw.Flush()
}

// flatten walks v and appends (key, rendered value) pairs. Struct fields use
// their Go names, slices index as [i], and map keys are emitted in sorted
// order for stable output.
func flatten(prefix string, v reflect.Value, rows *[][2]string) {
	if !v.IsValid() {
		*rows = append(*rows, [2]string{prefix, "<nil>"})
		return
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			*rows = append(*rows, [2]string{prefix, "<nil>"})
			return
		}
		flatten(prefix, v.Elem(), rows)
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			if !t.Field(i).IsExported() {
				continue
			}
			key := t.Field(i).Name
			if prefix != "" {
				key = prefix + "." + key
			}
			flatten(key, v.Field(i), rows)
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			flatten(fmt.Sprintf("%s[%d]", prefix, i), v.Index(i), rows)
		}
	case reflect.Map:
		keys := make([]string, 0, v.Len())
		byKey := make(map[string]reflect.Value, v.Len())
		for _, k := range v.MapKeys() {
			ks := fmt.Sprintf("%v", k.Interface())
			keys = append(keys, ks)
			byKey[ks] = v.MapIndex(k)
		}
		sort.Strings(keys)
		for _, ks := range keys {
			key := ks
			if prefix != "" {
				key = prefix + "." + ks
			}
			flatten(key, byKey[ks], rows)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		*rows = append(*rows, [2]string{prefix, numPrinter.Sprintf("%d", v.Int())})
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		*rows = append(*rows, [2]string{prefix, numPrinter.Sprintf("%d", v.Uint())})
	case reflect.Float32, reflect.Float64:
		*rows = append(*rows, [2]string{prefix, numPrinter.Sprintf("%.2f", v.Float())})
	default:
		*rows = append(*rows, [2]string{prefix, fmt.Sprintf("%v", v.Interface())})
	}
}
