// Package main undistorts a single omnidirectional camera image into a perspective or panoramic
// view using an OCamCalib calibration.
package main

import (
	"context"
	"image"
	"math"
	"os"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/ocam/logging"
	"go.viam.com/ocam/rimage"
	"go.viam.com/ocam/rimage/transform"
	rutils "go.viam.com/ocam/utils"
)

var logger = logging.NewLogger("undistort")

// demoPoint is projected and back-projected on startup as a sanity check of the calibration.
var demoPoint = r3.Vector{X: 100, Y: 200, Z: -300}

// Arguments for the command.
type Arguments struct {
	Config            string             `flag:"config,usage=yaml or json job file; flags override it"`
	Calibration       string             `flag:"calib,usage=OCamCalib calibration (txt or json or yaml)"`
	Input             string             `flag:"input,usage=distorted input image"`
	Output            string             `flag:"output,usage=undistorted output image"`
	Mode              string             `flag:"mode,usage=perspective or panoramic"`
	Width             int                `flag:"width,usage=output width in pixels (default input width)"`
	Height            int                `flag:"height,usage=output height in pixels (default input height)"`
	ScaleFactor       rutils.Float64Flag `flag:"sf,usage=perspective zoom factor (default 4)"`
	RMin              rutils.Float64Flag `flag:"rmin,usage=panoramic inner radius in pixels"`
	RMax              rutils.Float64Flag `flag:"rmax,usage=panoramic outer radius in pixels"`
	CounterClockwise  bool               `flag:"counter-clockwise,usage=panoramic angle grows counter-clockwise"`
	InnerRadiusFirst  bool               `flag:"inner-radius-first,usage=panoramic row 0 is the inner radius"`
	Interpolation     string             `flag:"interpolation,usage=nearest or bilinear or area or bicubic"`
	Border            string             `flag:"border,usage=constant or replicate or transparent"`
	FitInvPol         int                `flag:"fit-invpol,usage=refit the inverse polynomial with this degree"`
	IntrinsicsOutput  string             `flag:"intrinsics-out,usage=write perspective view intrinsics json here"`
	CalibrationOutput string             `flag:"calibration-out,usage=write the calibration in OCamCalib format here"`
	LogFile           string             `flag:"log-file,usage=also log to this rotating file"`
	Debug             bool               `flag:"debug"`
}

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

func mainWithArgs(ctx context.Context, args []string, logger logging.Logger) (err error) {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}
	if argsParsed.Debug {
		logger.SetLevel(logging.DEBUG)
	}
	if argsParsed.LogFile != "" {
		appender, closer := logging.NewFileAppender(logging.DefaultFileAppenderConfig(argsParsed.LogFile))
		logger.AddAppender(appender)
		defer func() {
			err = multierr.Combine(err, appender.Sync(), closer.Close())
		}()
	}

	cfg, err := argsParsed.toConfig()
	if err != nil {
		return err
	}
	return newRunner(logger).run(ctx, cfg)
}

// toConfig layers the flags over the job file, if any.
func (args *Arguments) toConfig() (*UndistortConfig, error) {
	cfg := &UndistortConfig{}
	if args.Config != "" {
		var err error
		if cfg, err = ReadUndistortConfig(args.Config); err != nil {
			return nil, err
		}
	}
	overrideString(&cfg.Calibration, args.Calibration)
	overrideString(&cfg.Input, args.Input)
	overrideString(&cfg.Output, args.Output)
	overrideString(&cfg.Mode, args.Mode)
	overrideString(&cfg.Interpolation, args.Interpolation)
	overrideString(&cfg.Border, args.Border)
	overrideString(&cfg.IntrinsicsOutput, args.IntrinsicsOutput)
	overrideString(&cfg.CalibrationOutput, args.CalibrationOutput)
	if args.Width != 0 {
		cfg.Width = args.Width
	}
	if args.Height != 0 {
		cfg.Height = args.Height
	}
	if args.ScaleFactor.IsSet() {
		// zero would otherwise be taken for the default
		if args.ScaleFactor.Float64() <= 0 {
			return nil, errors.Errorf("scale factor must be positive, got %v", args.ScaleFactor.Float64())
		}
		cfg.ScaleFactor = args.ScaleFactor.Float64()
	}
	if args.RMin.IsSet() {
		cfg.RMin = args.RMin.Float64()
	}
	if args.RMax.IsSet() {
		cfg.RMax = args.RMax.Float64()
	}
	if args.CounterClockwise {
		cfg.Clockwise = boolPtr(false)
	}
	if args.InnerRadiusFirst {
		cfg.OuterRadiusFirst = boolPtr(false)
	}
	if args.FitInvPol != 0 {
		cfg.FitInversePolynomial = args.FitInvPol
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func overrideString(dst *string, val string) {
	if val != "" {
		*dst = val
	}
}

type modelLoader interface {
	LoadModel(path string, fitDegree int) (*transform.OmnidirectionalCameraModel, error)
}

type imageReader interface {
	ReadImage(path string) (image.Image, error)
}

type remapper interface {
	Remap(ctx context.Context, img image.Image, mapping rimage.SourceMap, opts rimage.RemapOptions) (*image.NRGBA, error)
}

type imageWriter interface {
	WriteImage(path string, img image.Image) error
}

// fileModelLoader reads calibrations from disk, optionally regenerating the inverse polynomial.
type fileModelLoader struct{}

func (fileModelLoader) LoadModel(path string, fitDegree int) (*transform.OmnidirectionalCameraModel, error) {
	model, err := transform.ReadOmnidirectionalCameraModelFile(path)
	if err != nil {
		return nil, err
	}
	if fitDegree > 0 {
		if model.InvPol, err = transform.FitInversePolynomial(model.Pol, model.Radius(), fitDegree); err != nil {
			return nil, errors.Wrap(err, "error fitting inverse polynomial")
		}
	}
	if err := model.CheckValid(); err != nil {
		return nil, err
	}
	return model, nil
}

type fileImageIO struct{}

func (fileImageIO) ReadImage(path string) (image.Image, error) {
	return rimage.ReadImageFromFile(path)
}

func (fileImageIO) WriteImage(path string, img image.Image) error {
	return rimage.WriteImageToFile(path, img)
}

type remapFunc func(ctx context.Context, img image.Image, mapping rimage.SourceMap, opts rimage.RemapOptions) (*image.NRGBA, error)

func (f remapFunc) Remap(
	ctx context.Context,
	img image.Image,
	mapping rimage.SourceMap,
	opts rimage.RemapOptions,
) (*image.NRGBA, error) {
	return f(ctx, img, mapping, opts)
}

type runner struct {
	logger   logging.Logger
	models   modelLoader
	reader   imageReader
	remapper remapper
	writer   imageWriter
}

func newRunner(logger logging.Logger) *runner {
	return &runner{
		logger:   logger,
		models:   fileModelLoader{},
		reader:   fileImageIO{},
		remapper: remapFunc(rimage.Remap),
		writer:   fileImageIO{},
	}
}

func (r *runner) run(ctx context.Context, cfg *UndistortConfig) error {
	model, err := r.models.LoadModel(cfg.Calibration, cfg.FitInversePolynomial)
	if err != nil {
		return err
	}
	r.logger.Infow("loaded calibration", "path", cfg.Calibration)
	r.logger.Infof("pol (degree %d): %v", model.Degree(), model.Pol)
	r.logger.Infof("invpol (degree %d): %v", model.InverseDegree(), model.InvPol)
	r.logger.Infow("center", "xc", model.Xc, "yc", model.Yc)
	r.logger.Infow("affine", "c", model.C, "d", model.D, "e", model.E)
	r.logger.Infow("sensor", "width", model.Width, "height", model.Height)
	if cfg.FitInversePolynomial > 0 {
		if fitErr, err := transform.InverseFitError(model.Pol, model.InvPol, model.Radius()); err == nil {
			r.logger.Infof("refitted invpol, max error %.4f px", fitErr)
		} else {
			r.logger.Warnw("cannot measure inverse polynomial error", "error", err)
		}
	}

	p := model.World2Cam(demoPoint)
	back := model.Cam2World(p)
	r.logger.Infof("world2cam: %v -> (row=%.4f, col=%.4f)", demoPoint, p.Row, p.Col)
	r.logger.Infof("cam2world: (row=%.4f, col=%.4f) -> %v", p.Row, p.Col, back)
	r.logger.Debugf("demo point elevation: %.2f deg", rutils.RadToDeg(math.Atan2(demoPoint.Z, math.Hypot(demoPoint.X, demoPoint.Y))))

	img, err := r.reader.ReadImage(cfg.Input)
	if err != nil {
		return err
	}
	width, height := cfg.Width, cfg.Height
	if width == 0 {
		width = img.Bounds().Dx()
	}
	if height == 0 {
		height = img.Bounds().Dy()
	}
	if model.Width != 0 && model.Height != 0 &&
		(img.Bounds().Dx() != model.Width || img.Bounds().Dy() != model.Height) {
		r.logger.Warnf("input is %dx%d but the calibration is for %dx%d",
			img.Bounds().Dx(), img.Bounds().Dy(), model.Width, model.Height)
	}

	lutLogger := r.logger.Sublogger("lut")
	start := time.Now()
	var lut *transform.UndistortionLUT
	switch cfg.Mode {
	case modePerspective:
		view := transform.PerspectiveView{Width: width, Height: height, ScaleFactor: cfg.ScaleFactor}
		if lut, err = transform.BuildPerspectiveLUT(ctx, model, view); err != nil {
			return err
		}
		if cfg.IntrinsicsOutput != "" {
			if err := view.Intrinsics().WriteJSONFile(cfg.IntrinsicsOutput); err != nil {
				return err
			}
			lutLogger.Infow("wrote intrinsics", "path", cfg.IntrinsicsOutput)
		}
	case modePanoramic:
		view := transform.PanoramicView{
			Width:            width,
			Height:           height,
			RMin:             cfg.RMin,
			RMax:             cfg.RMax,
			Clockwise:        *cfg.Clockwise,
			OuterRadiusFirst: *cfg.OuterRadiusFirst,
		}
		if lut, err = transform.BuildPanoramicLUT(ctx, model, view); err != nil {
			return err
		}
	default:
		return errors.Errorf("unknown mode %q", cfg.Mode)
	}
	lutLogger.Debugw("built LUT", "mode", cfg.Mode, "width", width, "height", height, "took", time.Since(start))

	opts, err := cfg.remapOptions()
	if err != nil {
		return err
	}
	start = time.Now()
	out, err := r.remapper.Remap(ctx, img, lut, opts)
	if err != nil {
		return err
	}
	r.logger.Sublogger("remap").Debugw("remapped", "interpolation", opts.Interpolation, "border", opts.Border, "took", time.Since(start))

	if err := r.writer.WriteImage(cfg.Output, out); err != nil {
		return err
	}
	r.logger.Infow("wrote undistorted image", "path", cfg.Output)

	if cfg.CalibrationOutput != "" {
		if err := writeCalibration(cfg.CalibrationOutput, model); err != nil {
			return err
		}
		r.logger.Infow("wrote calibration", "path", cfg.CalibrationOutput)
	}
	return nil
}

func writeCalibration(path string, model *transform.OmnidirectionalCameraModel) (err error) {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "error creating calibration file")
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return transform.WriteOcamCalibration(f, model)
}
