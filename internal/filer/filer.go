// Package filer lands vendor data files in a destination directory under a
// canonical name.
package filer

import (
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"transportagent/internal/model"
)

// ErrUnexpectedName means the vendor data file name cannot be mapped to a
// canonical name. Copying it again will not help.
var ErrUnexpectedName = errors.New("unexpected data file name")

// Options configures file naming
type Options struct {
	DestDir       string
	Prefix        string
	GetDataExt    string
	GetHistoryExt string
}

// Filer copies data files
type Filer struct {
	fs   afero.Fs
	opts Options
	log  *logrus.Entry
}

// New creates a Filer on fs
func New(fs afero.Fs, opts Options, log *logrus.Entry) *Filer {
	return &Filer{fs: fs, opts: opts, log: log}
}

// Enabled reports whether a destination directory is configured
func (f *Filer) Enabled() bool {
	return f != nil && f.opts.DestDir != ""
}

// Name maps a vendor file name "<date>.<reqid>.<ext>" to
// "<prefix><date>_<batchid>_<reqid><progext>.<ext>"
func (f *Filer) Name(src, programCode string, batchID int64) (string, error) {
	base := path.Base(filepath.ToSlash(src))
	parts := strings.Split(base, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return "", fmt.Errorf("%w %q", ErrUnexpectedName, base)
	}
	date, reqID, ext := parts[0], parts[1], parts[2]

	progExt := f.opts.GetHistoryExt
	if programCode == model.ProgramGetData {
		progExt = f.opts.GetDataExt
	}

	return f.opts.Prefix + date + "_" + strconv.FormatInt(batchID, 10) + "_" + reqID + progExt + "." + ext, nil
}

// Copy copies src into the destination directory and returns the new path
func (f *Filer) Copy(src, programCode string, batchID int64) (string, error) {
	info, err := f.fs.Stat(f.opts.DestDir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("destination %q is not a directory", f.opts.DestDir)
	}

	name, err := f.Name(src, programCode, batchID)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(f.opts.DestDir, name)

	in, err := f.fs.Open(src)
	if err != nil {
		return "", fmt.Errorf("open data file: %w", err)
	}
	defer in.Close()

	out, err := f.fs.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", dst, err)
	}
	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = f.fs.Remove(dst)
		return "", fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}

	f.log.WithFields(logrus.Fields{
		"src":   src,
		"dst":   dst,
		"bytes": n,
	}).Info("data file copied")
	return dst, nil
}
