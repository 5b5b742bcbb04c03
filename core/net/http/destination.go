package http

import (
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/kochabx/courier/errors"
)

// DestinationOptions 下载完成后移动文件的方式
type DestinationOptions struct {
	CreateIntermediateDirectories bool
	RemovePreviousFile            bool
}

// DownloadDestination picks the final path for a downloaded body once the
// response headers are known.
type DownloadDestination func(resp *http.Response) (string, DestinationOptions)

const defaultDownloadName = "download"

// SuggestedDestination saves into dir (the system temp directory when empty),
// naming the file from Content-Disposition or the last URL path segment.
// Existing files are replaced and missing directories created.
func SuggestedDestination(dir string) DownloadDestination {
	return func(resp *http.Response) (string, DestinationOptions) {
		base := dir
		if base == "" {
			base = os.TempDir()
		}
		return filepath.Join(base, suggestedFilename(resp)), DestinationOptions{
			CreateIntermediateDirectories: true,
			RemovePreviousFile:            true,
		}
	}
}

// FileDestination always saves to path.
func FileDestination(path string, opts DestinationOptions) DownloadDestination {
	return func(*http.Response) (string, DestinationOptions) {
		return path, opts
	}
}

func suggestedFilename(resp *http.Response) string {
	if resp != nil {
		if cd := resp.Header.Get(HeaderContentDisposition); cd != "" {
			if _, params, err := mime.ParseMediaType(cd); err == nil {
				if name := filepath.Base(params["filename"]); name != "." && name != "/" && name != "" {
					return name
				}
			}
		}
		if resp.Request != nil && resp.Request.URL != nil {
			if name := path.Base(resp.Request.URL.Path); name != "." && name != "/" && name != "" {
				return name
			}
		}
	}
	return defaultDownloadName
}

// saveBody streams resp.Body to a temporary file and moves it to the path
// chosen by dest. Read errors come from the engine and are returned as is;
// local file failures are reported as Internal errors.
func saveBody(resp *http.Response, dest DownloadDestination) (string, error) {
	defer resp.Body.Close()

	tmp, err := os.CreateTemp("", "courier-download-*")
	if err != nil {
		return "", errors.Wrap(err, errors.CodeInternal, "create temporary file")
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", errors.Wrap(err, errors.CodeInternal, "close temporary file")
	}

	target, opts := dest(resp)
	if target == "" {
		return "", errors.Internal("download destination is empty")
	}

	if opts.CreateIntermediateDirectories {
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return "", errors.Wrap(err, errors.CodeInternal, "create directory for %s", target)
		}
	}
	if opts.RemovePreviousFile {
		if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
			return "", errors.Wrap(err, errors.CodeInternal, "remove previous file %s", target)
		}
	} else if _, err := os.Stat(target); err == nil {
		return "", errors.Internal("download destination %s already exists", target)
	}

	if err := moveFile(tmpPath, target); err != nil {
		return "", errors.Wrap(err, errors.CodeInternal, "move download to %s", target)
	}
	return target, nil
}

// moveFile renames src to dst, copying when they are on different devices.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	if _, err := os.Stat(dst); err == nil {
		return os.ErrExist
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
