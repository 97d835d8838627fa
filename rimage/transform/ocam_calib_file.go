package transform

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.viam.com/utils"
	"gopkg.in/yaml.v3"
)

// NewOmnidirectionalCameraModelFromFile reads a calibration from disk and validates it. Files
// ending in .json or .yaml/.yml are decoded with the model's field tags; anything else is read
// as an OCamCalib calib_results.txt file.
func NewOmnidirectionalCameraModelFromFile(path string) (*OmnidirectionalCameraModel, error) {
	model, err := ReadOmnidirectionalCameraModelFile(path)
	if err != nil {
		return nil, err
	}
	if err := model.CheckValid(); err != nil {
		return nil, err
	}
	return model, nil
}

// ReadOmnidirectionalCameraModelFile is NewOmnidirectionalCameraModelFromFile without the
// validation, for callers that complete the model first (e.g. by fitting InvPol).
func ReadOmnidirectionalCameraModelFile(path string) (*OmnidirectionalCameraModel, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "error opening calibration file")
	}
	defer utils.UncheckedErrorFunc(f.Close)

	model := &OmnidirectionalCameraModel{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.NewDecoder(f).Decode(model); err != nil {
			return nil, errors.Wrap(err, "error parsing JSON calibration")
		}
	case ".yaml", ".yml":
		if err := yaml.NewDecoder(f).Decode(model); err != nil {
			return nil, errors.Wrap(err, "error parsing YAML calibration")
		}
	default:
		model, err = ParseOcamCalibration(f)
		if err != nil {
			return nil, errors.Wrapf(err, "error parsing calibration file %q", path)
		}
	}
	return model, nil
}

// ParseOcamCalibration reads the OCamCalib text format. Lines starting with '#' and blank
// lines are ignored. The remaining values are, in order:
//
//	length_pol pol[0] ... pol[length_pol-1]
//	length_invpol invpol[0] ... invpol[length_invpol-1]
//	xc yc
//	c d e
//	height width
//
// The returned model is not validated.
func ParseOcamCalibration(r io.Reader) (*OmnidirectionalCameraModel, error) {
	tokens, err := calibrationTokens(r)
	if err != nil {
		return nil, err
	}
	next := func(what string) (string, error) {
		if len(tokens) == 0 {
			return "", errors.Errorf("unexpected end of calibration reading %s", what)
		}
		tok := tokens[0]
		tokens = tokens[1:]
		return tok, nil
	}
	nextFloat := func(what string) (float64, error) {
		tok, err := next(what)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "error parsing %s", what)
		}
		return v, nil
	}
	nextInt := func(what string) (int, error) {
		tok, err := next(what)
		if err != nil {
			return 0, err
		}
		v, err := strconv.Atoi(tok)
		if err != nil {
			// some exporters write integral values as floats
			f, ferr := strconv.ParseFloat(tok, 64)
			if ferr != nil || f != float64(int(f)) {
				return 0, errors.Wrapf(err, "error parsing %s", what)
			}
			v = int(f)
		}
		return v, nil
	}
	nextPoly := func(name string) ([]float64, error) {
		n, err := nextInt("length_" + name)
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, errors.Errorf("negative length_%s %d", name, n)
		}
		if n > len(tokens) {
			return nil, errors.Errorf("length_%s %d exceeds the %d values left", name, n, len(tokens))
		}
		coeffs := make([]float64, n)
		for i := range coeffs {
			if coeffs[i], err = nextFloat(fmt.Sprintf("%s[%d]", name, i)); err != nil {
				return nil, err
			}
		}
		return coeffs, nil
	}

	model := &OmnidirectionalCameraModel{}
	if model.Pol, err = nextPoly("pol"); err != nil {
		return nil, err
	}
	if model.InvPol, err = nextPoly("invpol"); err != nil {
		return nil, err
	}
	for _, field := range []struct {
		name string
		dst  *float64
	}{
		{"xc", &model.Xc},
		{"yc", &model.Yc},
		{"c", &model.C},
		{"d", &model.D},
		{"e", &model.E},
	} {
		if *field.dst, err = nextFloat(field.name); err != nil {
			return nil, err
		}
	}
	if model.Height, err = nextInt("height"); err != nil {
		return nil, err
	}
	if model.Width, err = nextInt("width"); err != nil {
		return nil, err
	}
	if len(tokens) != 0 {
		return nil, errors.Errorf("unexpected trailing calibration values %v", tokens)
	}
	return model, nil
}

func calibrationTokens(r io.Reader) ([]string, error) {
	var tokens []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		tokens = append(tokens, strings.Fields(line)...)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "error reading calibration")
	}
	return tokens, nil
}

// WriteOcamCalibration writes the model in the OCamCalib text format read by
// ParseOcamCalibration.
func WriteOcamCalibration(w io.Writer, m *OmnidirectionalCameraModel) error {
	if m == nil {
		return NewInvalidCalibrationError("calibration does not exist")
	}
	var sb strings.Builder
	writePoly := func(coeffs []float64) {
		sb.WriteString(strconv.Itoa(len(coeffs)))
		for _, c := range coeffs {
			sb.WriteString(" ")
			sb.WriteString(strconv.FormatFloat(c, 'e', -1, 64))
		}
		sb.WriteString("\n\n")
	}
	formatFloat := func(v float64) string {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}

	sb.WriteString("#polynomial coefficients for the DIRECT mapping function (used by cam2world)\n\n")
	writePoly(m.Pol)
	sb.WriteString("#polynomial coefficients for the inverse mapping function (used by world2cam)\n\n")
	writePoly(m.InvPol)
	sb.WriteString("#center: \"row\" and \"column\", starting from 0 (C convention)\n\n")
	fmt.Fprintf(&sb, "%s %s\n\n", formatFloat(m.Xc), formatFloat(m.Yc))
	sb.WriteString("#affine parameters \"c\", \"d\", \"e\"\n\n")
	fmt.Fprintf(&sb, "%s %s %s\n\n", formatFloat(m.C), formatFloat(m.D), formatFloat(m.E))
	sb.WriteString("#image size: \"height\" and \"width\"\n\n")
	fmt.Fprintf(&sb, "%d %d\n", m.Height, m.Width)

	_, err := io.WriteString(w, sb.String())
	return err
}
