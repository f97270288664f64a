package dataset

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/mchmarny/nnpu/pkg/auth"
	"github.com/mchmarny/nnpu/pkg/config"
	"github.com/mchmarny/nnpu/pkg/net"
	"github.com/mchmarny/nnpu/pkg/risk"
)

// LoadFile reads a CSV dataset from a local path or an http(s) URL, see Load.
// Downloads carry the configured data token, if any.
func LoadFile(path string) (*Dataset, error) {
	var token string
	if net.IsURL(path) {
		token = auth.Token(tokenDir())
	}

	f, err := net.Open(context.Background(), path, token)
	if err != nil {
		return nil, errors.Wrapf(err, "error opening dataset: %s", path)
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Load(f, name)
}

// tokenDir is the app home dir holding the token file fallback. It is empty
// when the home dir cannot be resolved.
func tokenDir() string {
	dir, _, err := config.GetOrCreateHomeDir(config.AppName)
	if err != nil {
		slog.Debug("no app home dir for data token", "error", err)
		return ""
	}
	return dir
}

// Load reads rows of "class,feature,..." where class 1 is positive and
// anything else (0 or -1) negative. Lines starting with # are skipped.
func Load(r io.Reader, name string) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	d := &Dataset{Name: name}
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "error reading line %d", line)
		}
		if len(rec) < 2 {
			return nil, errors.Errorf("line %d: expected class and at least one feature", line)
		}

		c, err := strconv.ParseFloat(rec[0], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d: invalid class %q", line, rec[0])
		}
		x := make([]float64, len(rec)-1)
		for i, v := range rec[1:] {
			if x[i], err = strconv.ParseFloat(v, 64); err != nil {
				return nil, errors.Wrapf(err, "line %d: invalid feature %q", line, v)
			}
		}
		if len(d.Examples) > 0 && len(x) != d.Dim() {
			return nil, errors.Errorf("line %d: expected %d features, got %d", line, d.Dim(), len(x))
		}

		class := -1
		if c == 1 {
			class = 1
		}
		d.Examples = append(d.Examples, Example{Features: x, Class: class, Label: risk.Unlabeled})
	}

	if len(d.Examples) == 0 {
		return nil, errors.Errorf("dataset %s is empty", name)
	}
	return d, nil
}
