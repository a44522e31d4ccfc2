package memn2n

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/google/uuid"
)

type Statistics struct {
	RunID       string
	Epochs      []int
	Costs       []float32
	Accuracy    []float32
	Supported   []float32
	Checkpoints map[int]string // epoch to saved model
}

func makeStatistics() Statistics {
	return Statistics{
		RunID:       uuid.New().String(),
		Epochs:      make([]int, 0, 64),
		Costs:       make([]float32, 0, 64),
		Accuracy:    make([]float32, 0, 64),
		Supported:   make([]float32, 0, 64),
		Checkpoints: make(map[int]string),
	}
}

func (s *Statistics) update(epoch int, cost float32, ev Evaluation) {
	s.Epochs = append(s.Epochs, epoch)
	s.Costs = append(s.Costs, cost)
	s.Accuracy = append(s.Accuracy, ev.Accuracy)
	s.Supported = append(s.Supported, ev.Supported)
}

func (s *Statistics) Dump(filename string) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write([]string{"run", "epoch", "cost", "accuracy", "supported", "checkpoint"}); err != nil {
		return err
	}
	records := make([][]string, 0, len(s.Epochs))
	for i, epoch := range s.Epochs {
		records = append(records, []string{
			s.RunID,
			strconv.Itoa(epoch),
			strconv.FormatFloat(float64(s.Costs[i]), 'f', 4, 32),
			strconv.FormatFloat(float64(s.Accuracy[i]), 'f', 3, 32),
			strconv.FormatFloat(float64(s.Supported[i]), 'f', 3, 32),
			s.Checkpoints[epoch],
		})
	}
	if err := w.WriteAll(records); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
