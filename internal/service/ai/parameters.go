package ai

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ParameterSource locates the bytes of one parameter blob.
type ParameterSource struct {
	Name  string
	Count int
	Path  string
}

// ParameterProvider resolves a declared parameter to its location, failing if
// it cannot be found.
type ParameterProvider func(name string, count int) (ParameterSource, error)

// BundleProvider resolves parameters to "<dir>/<name>.<ext>". Names that
// already carry an extension are used as they are.
func BundleProvider(dir, ext string) ParameterProvider {
	ext = strings.TrimPrefix(ext, ".")
	return func(name string, count int) (ParameterSource, error) {
		file := name
		if filepath.Ext(name) == "" && ext != "" {
			file = name + "." + ext
		}
		path := filepath.Join(dir, file)

		info, err := os.Stat(path)
		if err != nil {
			return ParameterSource{}, LoaderError("resolve parameter "+name, err)
		}
		if info.IsDir() {
			return ParameterSource{}, LoaderError("resolve parameter "+name, fmt.Errorf("%s is a directory", path))
		}
		return ParameterSource{Name: name, Count: count, Path: path}, nil
	}
}

// resolveParameters asks the provider for every declared parameter and checks
// raw float32 blobs against their declared element count.
func resolveParameters(specs []ParameterSpec, provider ParameterProvider) ([]ParameterSource, error) {
	if len(specs) > 0 && provider == nil {
		return nil, LoaderError("resolve parameters", fmt.Errorf("no parameter provider for %d parameters", len(specs)))
	}

	sources := make([]ParameterSource, 0, len(specs))
	for _, spec := range specs {
		src, err := provider(spec.Name, spec.Count)
		if err != nil {
			return nil, classify(ErrLoader, "resolve parameter "+spec.Name, err)
		}

		info, err := os.Stat(src.Path)
		if err != nil {
			return nil, LoaderError("stat parameter "+spec.Name, err)
		}

		if spec.Count > 0 && strings.EqualFold(filepath.Ext(src.Path), ".bin") {
			want := int64(spec.Count) * 4
			if info.Size() != want {
				return nil, ModelDataError("check parameter "+spec.Name,
					fmt.Errorf("%s holds %d bytes, expected %d (%d float32 values)", src.Path, info.Size(), want, spec.Count))
			}
		}
		sources = append(sources, src)
	}
	return sources, nil
}
