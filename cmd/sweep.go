/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/guptarohit/asciigraph"
	"github.com/notargets/gosupermode/InputParameters"
	"github.com/notargets/gosupermode/coupler"
	"github.com/notargets/gosupermode/supermode"
	"github.com/notargets/gosupermode/sweep"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type SweepRun struct {
	InputFile      string
	OutputFile     string
	Chart          bool
	Profile        bool
	Perf           bool
	Verbose        bool
	ParallelDegree int
}

// SweepCmd represents the sweep command
var SweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Solve and track supermodes over an ITR sweep",
	Long: `Solve and track supermodes over an ITR sweep described by a YAML input file,
writing the per mode propagation constants, coupling and adiabatic criterion`,
	Run: func(cmd *cobra.Command, args []string) {
		var (
			err error
		)
		sr := &SweepRun{}
		if sr.InputFile, err = cmd.Flags().GetString("inputFile"); err != nil {
			panic(err)
		}
		sr.OutputFile, _ = cmd.Flags().GetString("outputFile")
		sr.Chart, _ = cmd.Flags().GetBool("chart")
		sr.Profile, _ = cmd.Flags().GetBool("profile")
		sr.Perf, _ = cmd.Flags().GetBool("perf")
		sr.Verbose = viper.GetBool("verbose")
		sr.ParallelDegree = viper.GetInt("parallel")
		ip := processInput(sr)
		if sr.Profile {
			defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
		}
		if _, err = RunSweep(sr, ip, os.Stdout); err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
	},
}

func processInput(sr *SweepRun) (ip *InputParameters.SweepParameters) {
	if len(sr.InputFile) == 0 {
		err := fmt.Errorf("must supply an input parameters file (-I, --inputFile) in YAML format")
		fmt.Printf("error: %s\n", err.Error())
		exampleFile := `
########################################
Title: "Test Case"
Wavelength: 1.55
NComputedMode: 6
NSortedMode: 3
Boundaries:
  Left: symmetric # zero, symmetric, antisymmetric or absorbing
Sorting: field # or beta
ITRRange:
  Start: 1.0
  Stop: 0.1
  Steps: 100
ArraysFile: mesh.yaml # Mesh, Gradient and optionally Coefficients
########################################
`
		fmt.Printf("Example File:%s\n", exampleFile)
		os.Exit(1)
	}
	ip = InputParameters.NewSweepParameters()
	if err := ip.ReadFile(sr.InputFile); err != nil {
		panic(err)
	}
	return
}

func init() {
	rootCmd.AddCommand(SweepCmd)
	SweepCmd.Flags().StringP("inputFile", "I", "", "YAML file for input parameters like:\n\t- Wavelength\n\t- ITR or ITRRange\n\t- Mesh, Gradient")
	SweepCmd.Flags().StringP("outputFile", "o", "", "YAML file for the results, default is none")
	SweepCmd.Flags().BoolP("chart", "c", false, "display the effective index of each mode as a terminal chart")
	SweepCmd.Flags().Bool("profile", false, "write a CPU profile to the current directory")
	SweepCmd.Flags().Bool("perf", false, "count CPU instructions spent in the sweep (linux)")
	SweepCmd.Flags().IntP("parallel", "p", 0, "go routines for the pair computations, 0 uses every CPU")
	if err := viper.BindPFlag("parallel", SweepCmd.Flags().Lookup("parallel")); err != nil {
		panic(err)
	}
}

type ModeResult struct {
	Name           string               `yaml:"Name"`
	ModeNumber     int                  `yaml:"ModeNumber"`
	Betas          []float64            `yaml:"Betas"`
	EffectiveIndex []float64            `yaml:"EffectiveIndex"`
	EigenValues    []float64            `yaml:"EigenValues"`
	Coupling       map[string][]float64 `yaml:"Coupling,omitempty"` // Keyed by the other mode's name
	Adiabatic      map[string][]float64 `yaml:"Adiabatic,omitempty"`
}

type SweepResult struct {
	Title          string       `yaml:"Title"`
	ITR            []float64    `yaml:"ITR"`
	CompletedSteps int          `yaml:"CompletedSteps"`
	Modes          []ModeResult `yaml:"Modes"`
	Warnings       []string     `yaml:"Warnings,omitempty"`
	Power          []float64    `yaml:"Power,omitempty"` // Power per mode at the end of the taper
	Instructions   uint64       `yaml:"Instructions,omitempty"`
	Error          string       `yaml:"Error,omitempty"`
}

// RunSweep solves the sweep described by ip and reports to w. A failed step or a
// failed propagation still produces the result, with the error recorded in it.
func RunSweep(sr *SweepRun, ip *InputParameters.SweepParameters, w io.Writer) (res *SweepResult, err error) {
	var (
		sv  *sweep.Solver
		set *supermode.Set
		itr []float64
	)
	if sr.Verbose {
		ip.Print()
	}
	cfg, err := ip.Config()
	if err != nil {
		return
	}
	cfg.Verbose = sr.Verbose
	if sr.ParallelDegree != 0 {
		cfg.ParallelDegree = sr.ParallelDegree
	}
	if itr, err = ip.ITRList(); err != nil {
		return
	}
	if len(ip.Mesh) == 0 {
		err = fmt.Errorf("no Mesh given inline or in ArraysFile")
		return
	}
	t, err := ip.Triplets(len(ip.Mesh[0]), len(ip.Mesh))
	if err != nil {
		return
	}
	if sv, err = sweep.NewSolver(ip.Mesh, ip.Gradient, t, cfg); err != nil {
		return
	}
	var sweepErr error
	solve := func() error {
		set, sweepErr = sv.Sweep(itr)
		return nil
	}
	res = &SweepResult{Title: ip.Title, ITR: itr}
	if sr.Perf {
		if res.Instructions, err = measureInstructions(solve); err != nil {
			return
		}
	} else {
		_ = solve()
	}
	if set == nil {
		return nil, sweepErr
	}
	if err = set.NameModes(ip.ModeNames...); err != nil {
		return
	}
	fillResult(res, set)
	if sweepErr == nil && ip.TaperLength != 0 {
		var propErr error
		if res.Power, propErr = propagate(set, ip.TaperLength); propErr != nil {
			sweepErr = fmt.Errorf("propagation over taper length %g: %w", ip.TaperLength, propErr)
		}
	}
	if sweepErr != nil {
		res.Error = sweepErr.Error()
	}
	fmt.Fprintf(w, "%s: %d of %d steps, %d tracking warnings\n",
		ip.Title, set.CompletedSteps, set.NSteps(), len(set.Warnings))
	if res.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", res.Error)
	}
	for _, m := range set.Ordered() {
		if set.CompletedSteps == 0 {
			break
		}
		fmt.Fprintf(w, "%12s: n_eff = %10.7f -> %10.7f\n", m.Name,
			m.EffectiveIndex()[0], m.EffectiveIndex()[set.CompletedSteps-1])
	}
	if sr.Chart && set.CompletedSteps > 1 {
		fmt.Fprintln(w, Chart(set))
	}
	if sr.OutputFile != "" {
		var data []byte
		if data, err = yaml.Marshal(res); err != nil {
			return
		}
		if err = os.WriteFile(sr.OutputFile, data, 0644); err != nil {
			return
		}
	}
	return res, sweepErr
}

func fillResult(res *SweepResult, set *supermode.Set) {
	var (
		ns = set.CompletedSteps
	)
	res.CompletedSteps = ns
	for _, w := range set.Warnings {
		res.Warnings = append(res.Warnings, w.Error())
	}
	for _, w := range set.Radiating {
		res.Warnings = append(res.Warnings, w.Error())
	}
	for _, m := range set.Modes {
		mr := ModeResult{
			Name:           m.Name,
			ModeNumber:     m.ModeNumber,
			Betas:          m.Betas()[:ns],
			EffectiveIndex: m.EffectiveIndex()[:ns],
			EigenValues:    m.EigenValues()[:ns],
			Coupling:       make(map[string][]float64),
			Adiabatic:      make(map[string][]float64),
		}
		for _, o := range set.Modes {
			if o == m {
				continue
			}
			mr.Coupling[o.Name] = m.CouplingWith(o)[:ns]
			mr.Adiabatic[o.Name] = m.AdiabaticWith(o)[:ns]
		}
		res.Modes = append(res.Modes, mr)
	}
}

// propagate launches all power in the fundamental mode and returns the power per mode
// at the end of the taper
func propagate(set *supermode.Set, length float64) (power []float64, err error) {
	var (
		c       *coupler.Coupler
		amps    [][]complex128
		initial = make([]complex128, set.NModes())
	)
	if c, err = coupler.New(set, length); err != nil {
		return
	}
	initial[set.Ordered()[0].ModeNumber] = 1
	if _, amps, err = c.Propagate(initial, 0); err != nil {
		return
	}
	return coupler.Power(amps[len(amps)-1]), nil
}

// Chart plots the effective index of every mode against the sweep step
func Chart(set *supermode.Set) string {
	var (
		data = make([][]float64, set.NModes())
		lo   = math.Inf(1)
	)
	for n, m := range set.Modes {
		data[n] = m.EffectiveIndex()[:set.CompletedSteps]
		for _, v := range data[n] {
			lo = math.Min(lo, v)
		}
	}
	return asciigraph.PlotMany(data,
		asciigraph.Height(15),
		asciigraph.Width(60),
		asciigraph.LowerBound(lo),
		asciigraph.Caption(fmt.Sprintf("effective index over %d ITR steps [%g, %g]",
			set.CompletedSteps, set.ITR[0], set.ITR[set.CompletedSteps-1])))
}
