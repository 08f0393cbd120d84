package InputParameters

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ghodss/yaml"
	"github.com/notargets/gosupermode/laplacian"
	"github.com/notargets/gosupermode/sorter"
	"github.com/notargets/gosupermode/sweep"
	"github.com/notargets/gosupermode/utils"
)

// Parameters obtained from the YAML input file
type SweepParameters struct {
	Title              string            `json:"Title"`
	Wavelength         float64           `json:"Wavelength"`
	NComputedMode      int               `json:"NComputedMode"`
	NSortedMode        int               `json:"NSortedMode"`
	MaxIterations      int               `json:"MaxIterations"`
	Tolerance          float64           `json:"Tolerance"`
	Boundaries         map[string]string `json:"Boundaries"` // Edge name (Left, Right, Top, Bottom) to tag
	Sorting            string            `json:"Sorting"`
	Assignment         string            `json:"Assignment"`
	ExtrapolationOrder int               `json:"ExtrapolationOrder"`
	Alpha              float64           `json:"Alpha"`
	Dx                 float64           `json:"Dx"`
	Dy                 float64           `json:"Dy"`
	InitialShift       float64           `json:"InitialShift"`
	MinSimilarity      float64           `json:"MinSimilarity"`
	ParallelDegree     int               `json:"ParallelDegree"`
	ITR                []float64         `json:"ITR"`
	ITRRange           *ITRRange         `json:"ITRRange"`
	ModeNames          []string          `json:"ModeNames"`
	TaperLength        float64           `json:"TaperLength"` // Non zero enables the propagation
	ArraysFile         string            `json:"ArraysFile"`  // Relative to the input file
	Arrays
}

// ITRRange is an evenly spaced sweep from Start to Stop inclusive
type ITRRange struct {
	Start float64 `json:"Start"`
	Stop  float64 `json:"Stop"`
	Steps int     `json:"Steps"`
}

// Arrays are the numerical inputs, either inline in the input file or in ArraysFile
type Arrays struct {
	Mesh         [][]float64   `json:"Mesh"`
	Gradient     []float64     `json:"Gradient"`
	Coefficients *Coefficients `json:"Coefficients"` // Absent uses the five point stencil
}

// Coefficients is the finite difference triplet list, indices may be written as floats
type Coefficients struct {
	Rows   []float64 `json:"Rows"`
	Cols   []float64 `json:"Cols"`
	Values []float64 `json:"Values"`
}

func NewSweepParameters() (ip *SweepParameters) {
	cfg := sweep.DefaultConfig()
	return &SweepParameters{
		Wavelength:         cfg.Wavelength,
		NComputedMode:      cfg.NComputedMode,
		NSortedMode:        cfg.NSortedMode,
		MaxIterations:      cfg.MaxIterations,
		Tolerance:          cfg.Tolerance,
		Sorting:            cfg.Sorting.String(),
		Assignment:         cfg.Assignment.String(),
		ExtrapolationOrder: cfg.ExtrapolationOrder,
		Alpha:              cfg.Alpha,
		Dx:                 cfg.Dx,
		Dy:                 cfg.Dy,
		MinSimilarity:      cfg.MinSimilarity,
	}
}

// Parse overlays the YAML document on the receiver, keys absent from the file keep
// their current values
func (ip *SweepParameters) Parse(data []byte) error {
	return yaml.Unmarshal(data, ip)
}

// ReadFile parses an input file and loads its ArraysFile, if any
func (ip *SweepParameters) ReadFile(fileName string) (err error) {
	var data []byte
	if data, err = os.ReadFile(fileName); err != nil {
		return
	}
	if err = ip.Parse(data); err != nil {
		return fmt.Errorf("parsing %s: %w", fileName, err)
	}
	return ip.LoadArrays(filepath.Dir(fileName))
}

// LoadArrays reads ArraysFile relative to dir, arrays already given inline win
func (ip *SweepParameters) LoadArrays(dir string) (err error) {
	if ip.ArraysFile == "" {
		return
	}
	fileName := ip.ArraysFile
	if !filepath.IsAbs(fileName) {
		fileName = filepath.Join(dir, fileName)
	}
	var (
		data []byte
		arr  Arrays
	)
	if data, err = os.ReadFile(fileName); err != nil {
		return
	}
	if err = yaml.Unmarshal(data, &arr); err != nil {
		return fmt.Errorf("parsing %s: %w", fileName, err)
	}
	if ip.Mesh == nil {
		ip.Mesh = arr.Mesh
	}
	if ip.Gradient == nil {
		ip.Gradient = arr.Gradient
	}
	if ip.Coefficients == nil {
		ip.Coefficients = arr.Coefficients
	}
	return
}

func (ip *SweepParameters) Config() (cfg sweep.Config, err error) {
	cfg = sweep.Config{
		NComputedMode:      ip.NComputedMode,
		NSortedMode:        ip.NSortedMode,
		MaxIterations:      ip.MaxIterations,
		Tolerance:          ip.Tolerance,
		Wavelength:         ip.Wavelength,
		ExtrapolationOrder: ip.ExtrapolationOrder,
		Alpha:              ip.Alpha,
		Dx:                 ip.Dx,
		Dy:                 ip.Dy,
		InitialShift:       ip.InitialShift,
		MinSimilarity:      ip.MinSimilarity,
		ParallelDegree:     ip.ParallelDegree,
	}
	bc := map[string]string{"left": "zero", "right": "zero", "top": "zero", "bottom": "zero"}
	for edge, tag := range ip.Boundaries {
		key := strings.ToLower(strings.TrimSpace(edge))
		if _, ok := bc[key]; !ok {
			err = fmt.Errorf("unknown boundary edge %q, must be one of [Left, Right, Top, Bottom]", edge)
			return
		}
		bc[key] = tag
	}
	cfg.Boundaries = utils.NewBoundaries(bc["left"], bc["right"], bc["top"], bc["bottom"])
	if cfg.Sorting, err = sorter.ParseCriterion(ip.Sorting); err != nil {
		return
	}
	if cfg.Assignment, err = sorter.ParseAssignment(ip.Assignment); err != nil {
		return
	}
	err = cfg.Validate()
	return
}

// ITRList is the explicit ITR list, or the ITRRange expanded when none is given
func (ip *SweepParameters) ITRList() (itr []float64, err error) {
	switch {
	case len(ip.ITR) != 0:
		return ip.ITR, nil
	case ip.ITRRange != nil:
		r := ip.ITRRange
		if r.Steps < 1 {
			return nil, fmt.Errorf("ITRRange needs at least one step, have %d", r.Steps)
		}
		itr = make([]float64, r.Steps)
		for i := range itr {
			if r.Steps == 1 {
				itr[i] = r.Start
				break
			}
			itr[i] = r.Start + (r.Stop-r.Start)*float64(i)/float64(r.Steps-1)
		}
		return
	}
	return nil, fmt.Errorf("no ITR or ITRRange given")
}

// Triplets converts the coefficient list, or builds the five point stencil
func (ip *SweepParameters) Triplets(nx, ny int) (t laplacian.Triplets, err error) {
	if ip.Coefficients == nil {
		return laplacian.FivePoint(nx, ny, ip.Dx, ip.Dy), nil
	}
	c := ip.Coefficients
	return laplacian.NewTripletsFromFloat(c.Rows, c.Cols, c.Values)
}

func (ip *SweepParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", ip.Title)
	fmt.Printf("%8.5f\t\t= Wavelength\n", ip.Wavelength)
	fmt.Printf("[%d/%d]\t\t\t= Computed/Sorted Modes\n", ip.NComputedMode, ip.NSortedMode)
	fmt.Printf("[%d]\t\t\t= Max Iterations\n", ip.MaxIterations)
	fmt.Printf("%8.3e\t\t= Tolerance\n", ip.Tolerance)
	fmt.Printf("[%s/%s]\t= Sorting/Assignment\n", ip.Sorting, ip.Assignment)
	fmt.Printf("[%d]\t\t\t\t= Extrapolation Order\n", ip.ExtrapolationOrder)
	fmt.Printf("%8.5f\t\t= Alpha\n", ip.Alpha)
	if len(ip.Mesh) != 0 {
		fmt.Printf("[%d x %d]\t\t\t= Mesh (ny x nx)\n", len(ip.Mesh), len(ip.Mesh[0]))
	}
	keys := make([]string, len(ip.Boundaries))
	i := 0
	for k := range ip.Boundaries {
		keys[i] = k
		i++
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Printf("Boundaries[%s] = %s\n", key, ip.Boundaries[key])
	}
}
