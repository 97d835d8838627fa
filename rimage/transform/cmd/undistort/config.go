package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
	"gopkg.in/yaml.v3"

	"go.viam.com/ocam/rimage"
	rutils "go.viam.com/ocam/utils"
)

const (
	modePerspective = "perspective"
	modePanoramic   = "panoramic"

	defaultScaleFactor   = 4
	defaultInterpolation = "bilinear"
	defaultBorder        = "constant"
)

// UndistortConfig describes one undistortion job. It can be read from a yaml or json file and
// is overridden by command line flags.
type UndistortConfig struct {
	Calibration string `json:"calibration" yaml:"calibration"`
	Input       string `json:"input" yaml:"input"`
	Output      string `json:"output" yaml:"output"`
	Mode        string `json:"mode" yaml:"mode"`

	// Width and Height default to the input image size.
	Width       int     `json:"width_px" yaml:"width_px"`
	Height      int     `json:"height_px" yaml:"height_px"`
	ScaleFactor float64 `json:"scale_factor" yaml:"scale_factor"`

	RMin             float64 `json:"r_min" yaml:"r_min"`
	RMax             float64 `json:"r_max" yaml:"r_max"`
	Clockwise        *bool   `json:"clockwise,omitempty" yaml:"clockwise,omitempty"`
	OuterRadiusFirst *bool   `json:"outer_radius_first,omitempty" yaml:"outer_radius_first,omitempty"`

	Interpolation string `json:"interpolation" yaml:"interpolation"`
	Border        string `json:"border" yaml:"border"`

	// FitInversePolynomial, when positive, refits InvPol with this degree before use.
	FitInversePolynomial int    `json:"fit_invpol" yaml:"fit_invpol"`
	IntrinsicsOutput     string `json:"intrinsics_output" yaml:"intrinsics_output"`
	CalibrationOutput    string `json:"calibration_output" yaml:"calibration_output"`
}

// ReadUndistortConfig reads a job file. Files ending in .json are json, anything else yaml.
// Relative paths in the file are relative to the file's directory.
func ReadUndistortConfig(path string) (*UndistortConfig, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "error opening config")
	}
	defer utils.UncheckedErrorFunc(f.Close)

	cfg := &UndistortConfig{}
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		dec := json.NewDecoder(f)
		dec.DisallowUnknownFields()
		err = dec.Decode(cfg)
	} else {
		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		err = dec.Decode(cfg)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "error parsing config %q", path)
	}

	dir := filepath.Dir(path)
	for _, p := range []*string{&cfg.Calibration, &cfg.Input, &cfg.Output, &cfg.IntrinsicsOutput, &cfg.CalibrationOutput} {
		*p = rutils.ResolvePath(dir, *p)
	}
	return cfg, nil
}

// applyDefaults fills every unset field that has a default. Width and Height are left to the
// caller since they depend on the input image.
func (cfg *UndistortConfig) applyDefaults() {
	if cfg.Mode == "" {
		cfg.Mode = modePerspective
	}
	cfg.Mode = strings.ToLower(cfg.Mode)
	if cfg.ScaleFactor == 0 {
		cfg.ScaleFactor = defaultScaleFactor
	}
	if cfg.Output == "" {
		cfg.Output = "undistorted_" + cfg.Mode + ".jpg"
	}
	if cfg.Interpolation == "" {
		cfg.Interpolation = defaultInterpolation
	}
	if cfg.Border == "" {
		cfg.Border = defaultBorder
	}
	if cfg.Clockwise == nil {
		cfg.Clockwise = boolPtr(true)
	}
	if cfg.OuterRadiusFirst == nil {
		cfg.OuterRadiusFirst = boolPtr(true)
	}
}

// Validate reports every problem with the config at once.
func (cfg *UndistortConfig) Validate() error {
	var errs error
	if cfg.Calibration == "" {
		errs = multierr.Append(errs, errors.New("a calibration file is required"))
	}
	if cfg.Input == "" {
		errs = multierr.Append(errs, errors.New("an input image is required"))
	}
	if cfg.Output != "" && !rimage.IsSupportedImageFile(cfg.Output) {
		errs = multierr.Append(errs, errors.Errorf("unsupported output image %q", cfg.Output))
	}
	if cfg.Width < 0 || cfg.Height < 0 {
		errs = multierr.Append(errs, errors.Errorf("invalid target size (%d, %d)", cfg.Width, cfg.Height))
	}
	switch cfg.Mode {
	case modePerspective:
		if cfg.ScaleFactor < 0 {
			errs = multierr.Append(errs, errors.Errorf("scale factor must be positive, got %v", cfg.ScaleFactor))
		}
	case modePanoramic:
		if cfg.RMax <= 0 {
			errs = multierr.Append(errs, errors.New("panoramic mode needs r_max"))
		}
		if cfg.RMin < 0 || cfg.RMin >= cfg.RMax {
			errs = multierr.Append(errs, errors.Errorf("radii must satisfy 0 <= r_min < r_max, got r_min=%v r_max=%v", cfg.RMin, cfg.RMax))
		}
		if cfg.IntrinsicsOutput != "" {
			errs = multierr.Append(errs, errors.New("intrinsics are only defined for perspective mode"))
		}
	default:
		errs = multierr.Append(errs, errors.Errorf("unknown mode %q; expected %q or %q", cfg.Mode, modePerspective, modePanoramic))
	}
	if cfg.Interpolation != "" {
		if _, err := rimage.ParseInterpolation(cfg.Interpolation); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if cfg.Border != "" {
		if _, err := rimage.ParseBorderMode(cfg.Border); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if cfg.FitInversePolynomial < 0 {
		errs = multierr.Append(errs, errors.Errorf("invalid inverse polynomial degree %d", cfg.FitInversePolynomial))
	}
	return errs
}

// remapOptions assumes a validated config.
func (cfg *UndistortConfig) remapOptions() (rimage.RemapOptions, error) {
	interp, err := rimage.ParseInterpolation(cfg.Interpolation)
	if err != nil {
		return rimage.RemapOptions{}, err
	}
	border, err := rimage.ParseBorderMode(cfg.Border)
	if err != nil {
		return rimage.RemapOptions{}, err
	}
	return rimage.RemapOptions{Interpolation: interp, Border: border}, nil
}

func boolPtr(b bool) *bool {
	return &b
}
