package evo

import (
	"errors"
	"fmt"
	"sort"

	"grayevo/internal/model"
)

var ErrUnknownStrategy = errors.New("unknown strategy")

const (
	DefaultEvaluator = "l1"
	DefaultMutator   = "rect_blend"
	DefaultCrosser   = "elite_copy"
)

var (
	evaluatorFactories = map[string]func(model.TargetImage) (Evaluator, error){
		"l1": func(target model.TargetImage) (Evaluator, error) {
			return NewL1Evaluator(target), nil
		},
		"squared": func(target model.TargetImage) (Evaluator, error) {
			return NewSquaredEvaluator(target), nil
		},
	}
	mutatorFactories = map[string]func(width, height int) (Mutator, error){
		"rect_blend": func(width, height int) (Mutator, error) {
			return NewRectBlendMutator(width, height)
		},
	}
	crosserFactories = map[string]func() (Crosser, error){
		"elite_copy": func() (Crosser, error) {
			return EliteCopyCrosser{}, nil
		},
	}
)

func NewEvaluator(name string, target model.TargetImage) (Evaluator, error) {
	if name == "" {
		name = DefaultEvaluator
	}
	factory, ok := evaluatorFactories[name]
	if !ok {
		return nil, fmt.Errorf("%w: evaluator %q (known: %v)", ErrUnknownStrategy, name, sortedKeys(evaluatorFactories))
	}
	return factory(target)
}

func NewMutator(name string, width, height int) (Mutator, error) {
	if name == "" {
		name = DefaultMutator
	}
	factory, ok := mutatorFactories[name]
	if !ok {
		return nil, fmt.Errorf("%w: mutator %q (known: %v)", ErrUnknownStrategy, name, sortedKeys(mutatorFactories))
	}
	return factory(width, height)
}

func NewCrosser(name string) (Crosser, error) {
	if name == "" {
		name = DefaultCrosser
	}
	factory, ok := crosserFactories[name]
	if !ok {
		return nil, fmt.Errorf("%w: crosser %q (known: %v)", ErrUnknownStrategy, name, sortedKeys(crosserFactories))
	}
	return factory()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
