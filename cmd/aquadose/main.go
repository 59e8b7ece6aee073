// aquadose — a nutrient dosing calculator for planted tanks.
//
// Usage:
//
//	aquadose [-fertilizer any|compound|mix] [-dosing-method dry|solution]
//	         [-tank-input volume|linear] [-tank-json file] [-serve addr]
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/andreevsm/aquadose/internal/api"
	"github.com/andreevsm/aquadose/internal/chem"
	"github.com/andreevsm/aquadose/internal/defaults"
	"github.com/andreevsm/aquadose/internal/display"
	"github.com/andreevsm/aquadose/internal/dosing"
	"github.com/andreevsm/aquadose/internal/fertilizer"
	"github.com/andreevsm/aquadose/internal/logger"
	"github.com/andreevsm/aquadose/internal/tank"
)

type options struct {
	elementsPath    string
	fertilizersPath string
	tankInput       string
	tankJSON        string
	dosingMethod    string
	dosingFile      string
	fertilizerType  string
	serveAddr       string
}

func main() {
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.elementsPath, "elements", "", "path to an elements YAML database to use instead of the embedded one")
	flag.StringVar(&opts.fertilizersPath, "fertilizers", "", "path to a fertilizers YAML database merged over the embedded one")
	flag.StringVar(&opts.tankInput, "tank-input", "volume", "how tank data is added: volume or linear")
	flag.StringVar(&opts.tankJSON, "tank-json", "", "optional path to a JSON file with the tank definition")
	flag.StringVar(&opts.dosingMethod, "dosing-method", "dry", "how the fertilizer is added: dry or solution")
	flag.StringVar(&opts.dosingFile, "dosing-file", "", "optional path to a YAML file with the dosing request (skips the dosing prompts)")
	flag.StringVar(&opts.fertilizerType, "fertilizer", "any", "what kind of fertilizer input: any, compound or mix")
	flag.StringVar(&opts.serveAddr, "serve", "", "serve the HTTP API on this address instead of the interactive flow (e.g. :8080)")
	verbose := flag.Bool("verbose", false, "enable verbose/debug logging")
	quiet := flag.Bool("quiet", false, "disable all logging")
	logFile := flag.String("log-file", ".aquadose-logs/aquadose.log", "file to write logs to (use \"stderr\" to log to console)")
	flag.Parse()

	logLevel := logger.LevelNormal
	if *verbose {
		logLevel = logger.LevelVerbose
	}
	if *quiet {
		logLevel = logger.LevelOff
	}

	// Direct logs to a file by default so the prompts stay clean.
	var logOut io.Writer = os.Stderr
	if *logFile != "" && *logFile != "stderr" {
		dir := filepath.Dir(*logFile)
		if dir != "" && dir != "." {
			os.MkdirAll(dir, 0o755)
		}
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not open log file %s: %v (falling back to stderr)\n", *logFile, err)
		} else {
			logOut = f
			defer f.Close()
		}
	}
	stdlog.SetOutput(logOut)
	stdlog.SetFlags(stdlog.Ltime)

	log := logger.New(logLevel, logOut)

	loadCatalogs := catalogLoader(opts, log)
	elements, fertilizers, err := loadCatalogs()
	if err != nil {
		fail(err)
	}
	log.Info("catalogs loaded: %d elements, %d fertilizers", elements.Len(), fertilizers.Len())

	if opts.serveAddr == "" {
		opts.serveAddr = os.Getenv("AQUADOSE_ADDR")
	}
	if opts.serveAddr != "" {
		srv := &api.Server{
			Store:  api.NewStore(elements, fertilizers),
			Reload: loadCatalogs,
			Log:    log,
		}
		if err := srv.Run(opts.serveAddr); err != nil {
			fail(err)
		}
		return
	}

	fmt.Println(display.RenderBanner())

	if err := runInteractive(opts, elements, fertilizers, log); err != nil {
		if errors.Is(err, display.ErrAborted) {
			return
		}
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, display.ErrorStyle.Render("error: "+err.Error()))
	os.Exit(1)
}

// catalogLoader builds the catalog-loading closure shared by startup and
// the HTTP reload endpoint: embedded defaults, optionally replaced
// (elements) or merged over (fertilizers) by files from the flags.
func catalogLoader(opts options, log *logger.Logger) func() (*chem.Catalog, *fertilizer.Catalog, error) {
	return func() (*chem.Catalog, *fertilizer.Catalog, error) {
		elementsData := defaults.Elements
		if opts.elementsPath != "" {
			data, err := os.ReadFile(opts.elementsPath)
			if err != nil {
				return nil, nil, err
			}
			elementsData = data
		}
		elements, err := chem.LoadCatalog(elementsData)
		if err != nil {
			return nil, nil, err
		}

		fertilizers := fertilizer.NewCatalog()
		if err := fertilizers.Load(defaults.Fertilizers, elements); err != nil {
			return nil, nil, err
		}
		if opts.fertilizersPath != "" {
			data, err := os.ReadFile(opts.fertilizersPath)
			if err != nil {
				return nil, nil, err
			}
			if err := fertilizers.Load(data, elements); err != nil {
				return nil, nil, err
			}
			log.Debug("merged fertilizers from %s", opts.fertilizersPath)
		}
		return elements, fertilizers, nil
	}
}

func runInteractive(opts options, elements *chem.Catalog, fertilizers *fertilizer.Catalog, log *logger.Logger) error {
	prompt := display.NewPrompter()

	fert, err := pickFertilizer(opts.fertilizerType, prompt, elements, fertilizers)
	if err != nil {
		return err
	}
	comps, err := fert.Components(elements)
	if err != nil {
		return err
	}
	fmt.Println(display.Heading("Fertilizer: " + fert.Name()))
	if desc := fert.Description(); desc != "" {
		fmt.Println(desc)
	}
	if compound, ok := fert.(*chem.Compound); ok {
		fmt.Println(display.MolarMassLine(compound.MolarMass()))
	}
	fmt.Print(display.Composition(comps))

	tk, err := pickTank(opts, prompt)
	if err != nil {
		return err
	}
	fmt.Println(display.TankLine(tk))

	var method dosing.Method
	if opts.dosingFile != "" {
		data, err := os.ReadFile(opts.dosingFile)
		if err != nil {
			return err
		}
		method, err = dosing.FromYAML(data)
		if err != nil {
			return err
		}
	} else {
		method, err = pickMethod(opts.dosingMethod, prompt, elements)
		if err != nil {
			return err
		}
	}

	res, err := method.Dilute(fert, elements, tk)
	if err != nil {
		return err
	}
	log.Debug("dose: %s into %s -> %.3f g", fert.Name(), tk.String(), res.CompoundDose)

	fmt.Println(display.Heading("Dose by elements"))
	fmt.Print(display.DoseReport(res))
	return nil
}

// pickFertilizer resolves the fertilizer input per the -fertilizer mode:
// any (catalog name with completion, raw formula fallback), compound (raw
// formula only), or mix (interactive NPK macro entry).
func pickFertilizer(mode string, prompt *display.Prompter, elements *chem.Catalog, fertilizers *fertilizer.Catalog) (fertilizer.Fertilizer, error) {
	switch mode {
	case "any":
		input, err := prompt.Ask("Fertilizer name or compound:", "e.g. Epsom Salt or KNO3", fertilizers.Names())
		if err != nil {
			return nil, err
		}
		if fert, err := fertilizers.Get(input); err == nil {
			return fert, nil
		}
		return chem.Parse(input, elements)
	case "compound":
		input, err := prompt.Ask("Compound formula:", "e.g. KNO3", nil)
		if err != nil {
			return nil, err
		}
		return chem.Parse(input, elements)
	case "mix":
		return askMacroMix(prompt, elements)
	default:
		return nil, fmt.Errorf("unknown fertilizer mode %q", mode)
	}
}

// askMacroMix reads a label-style NPK declaration.
func askMacroMix(prompt *display.Prompter, elements *chem.Catalog) (fertilizer.Fertilizer, error) {
	var vals [4]float64
	labels := [4]string{
		"Total N in percents:",
		"Total P2O5 in percents:",
		"Total K2O in percents:",
		"Total MgO in percents:",
	}
	for i, label := range labels {
		v, err := prompt.AskFloat(label)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return fertilizer.NewFromMacro(macroFromPercents(vals), elements)
}

// macroFromPercents maps the prompted values onto a Macro without
// rescaling: Macro fields are label percentages, and NewFromMacro owns
// the conversion to fractions.
func macroFromPercents(vals [4]float64) fertilizer.Macro {
	return fertilizer.Macro{Nitrogen: vals[0], P2O5: vals[1], K2O: vals[2], MgO: vals[3]}
}

func pickTank(opts options, prompt *display.Prompter) (*tank.Tank, error) {
	if opts.tankJSON != "" {
		data, err := os.ReadFile(opts.tankJSON)
		if err != nil {
			return nil, err
		}
		tk := &tank.Tank{}
		if err := json.Unmarshal(data, tk); err != nil {
			return nil, err
		}
		return tk, nil
	}

	switch opts.tankInput {
	case "volume":
		liters, err := prompt.AskFloat("Tank volume in liters:")
		if err != nil {
			return nil, err
		}
		return tank.NewVolume(liters, false)
	case "linear":
		dims := make([]float64, 3)
		for i, label := range []string{"Tank height:", "Tank length:", "Tank width:"} {
			raw, err := prompt.Ask(label, "e.g. 40cm", nil)
			if err != nil {
				return nil, err
			}
			dims[i], err = tank.ParseDimension(raw)
			if err != nil {
				return nil, err
			}
		}
		return tank.NewLinear(dims[0], dims[1], dims[2], false)
	default:
		return nil, fmt.Errorf("unknown tank input mode %q", opts.tankInput)
	}
}

func pickMethod(mode string, prompt *display.Prompter, elements *chem.Catalog) (dosing.Method, error) {
	what, target, input, err := askCalc(prompt, elements)
	if err != nil {
		return nil, err
	}

	switch mode {
	case "dry":
		return &dosing.DryDosing{DiluteInput: input, What: what, TargetElement: target}, nil
	case "solution":
		container, err := prompt.AskFloat("Container size in ml:")
		if err != nil {
			return nil, err
		}
		portion, err := prompt.AskFloat("Portion size in ml:")
		if err != nil {
			return nil, err
		}
		return &dosing.SolutionDosing{
			ContainerVolume: container,
			PortionVolume:   portion,
			SolutionInput:   input,
			What:            what,
			TargetElement:   target,
		}, nil
	default:
		return nil, fmt.Errorf("unknown dosing method %q", mode)
	}
}

// askCalc reads the calculation direction and its input: grams for the
// forward calculation, target element plus mg/L for the inverse one.
func askCalc(prompt *display.Prompter, elements *chem.Catalog) (dosing.CalcType, string, float64, error) {
	answer, err := prompt.Ask("Calculate [result|target]:", "result", []string{"result", "target"})
	if err != nil {
		return 0, "", 0, err
	}

	switch strings.ToLower(answer) {
	case "result", "":
		grams, err := prompt.AskFloat("Dose size in grams:")
		if err != nil {
			return 0, "", 0, err
		}
		return dosing.ResultOfDose, "", grams, nil
	case "target":
		target, err := prompt.Ask("Target element:", "e.g. N or NO3", elements.Names())
		if err != nil {
			return 0, "", 0, err
		}
		conc, err := prompt.AskFloat("Target concentration in mg/l:")
		if err != nil {
			return 0, "", 0, err
		}
		return dosing.TargetDose, target, conc, nil
	default:
		return 0, "", 0, fmt.Errorf("unknown calculation %q", answer)
	}
}
