package main

import (
	"encoding/json"
	"fmt"
	"os"

	"grayevo/pkg/grayevo"
)

// loadRunRequestFromConfig reads a JSON run config. Unknown keys are
// ignored and keys with the wrong shape keep their zero value.
func loadRunRequestFromConfig(path string) (grayevo.RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return grayevo.RunRequest{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return grayevo.RunRequest{}, err
	}

	var req grayevo.RunRequest
	if v, ok := asString(raw["run_id"]); ok {
		req.RunID = v
	}
	if v, ok := asString(raw["target_path"]); ok {
		req.TargetPath = v
	}
	if v, ok := asInt(raw["width"]); ok {
		req.Width = v
	}
	if v, ok := asInt(raw["height"]); ok {
		req.Height = v
	}
	if v, ok := asInt(raw["population"]); ok {
		req.Population = v
	}
	if v, ok := asInt(raw["elites"]); ok {
		req.Elites = v
	}
	if v, ok := asInt(raw["cycles"]); ok {
		req.Cycles = grayevo.CycleCount(v)
	}
	if v, ok := asInt(raw["print_rate"]); ok {
		req.PrintRate = v
	}
	if v, ok := asBool(raw["live"]); ok {
		req.Live = v
	}
	if v, ok := asString(raw["order"]); ok {
		req.Order = v
	}
	if v, ok := asString(raw["evaluator"]); ok {
		req.Evaluator = v
	}
	if v, ok := asString(raw["mutator"]); ok {
		req.Mutator = v
	}
	if v, ok := asString(raw["crosser"]); ok {
		req.Crosser = v
	}
	if v, ok := asInt(raw["initial_fill"]); ok {
		req.InitialFill = v
	}
	if v, ok := asString(raw["seed_image_path"]); ok {
		req.SeedImagePath = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		req.Seed = v
	}
	if v, ok := asString(raw["output_dir"]); ok {
		req.OutputDir = v
	}
	return req, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}

// overrideFromFlags applies only the flags the user set explicitly, so a
// config file keeps every value the command line leaves alone.
func overrideFromFlags(req *grayevo.RunRequest, set map[string]bool, flagValue map[string]any) error {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "run-id":
			req.RunID = v.(string)
		case "target":
			req.TargetPath = v.(string)
		case "width":
			req.Width = v.(int)
		case "height":
			req.Height = v.(int)
		case "pop":
			req.Population = v.(int)
		case "elites":
			req.Elites = v.(int)
		case "cycles":
			req.Cycles = grayevo.CycleCount(v.(int))
		case "print-rate":
			req.PrintRate = v.(int)
		case "live":
			req.Live = v.(bool)
		case "order":
			req.Order = v.(string)
		case "evaluator":
			req.Evaluator = v.(string)
		case "mutator":
			req.Mutator = v.(string)
		case "crosser":
			req.Crosser = v.(string)
		case "fill":
			req.InitialFill = v.(int)
		case "seed-image":
			req.SeedImagePath = v.(string)
		case "seed":
			req.Seed = v.(int64)
		case "out":
			req.OutputDir = v.(string)
		default:
			return fmt.Errorf("unsupported override flag: %s", name)
		}
	}
	return nil
}

func loadOrDefaultRunRequest(configPath string) (grayevo.RunRequest, error) {
	if configPath == "" {
		return grayevo.RunRequest{}, nil
	}
	req, err := loadRunRequestFromConfig(configPath)
	if err != nil {
		return grayevo.RunRequest{}, fmt.Errorf("load config: %w", err)
	}
	return req, nil
}
