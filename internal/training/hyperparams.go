package training

import (
	"fmt"
	"regexp"
	"strconv"
)

// HyperParameters are the recognized knobs of the image-classification
// algorithm. The service accepts only stringified values; Strings() performs
// the conversion after Validate() has checked the domains.
type HyperParameters struct {
	NumLayers           int
	ImageShape          string // "channels,height,width"
	NumTrainingSamples  int
	NumClasses          int
	MiniBatchSize       int
	Epochs              int
	LearningRate        float64
	TopK                int
	Resize              int // shortest-side target
	CheckpointFrequency int // epochs between checkpoints
	UsePretrainedModel  bool
}

// Network depths the algorithm ships weights for.
var validNumLayers = map[int]bool{18: true, 34: true, 50: true, 101: true, 152: true, 200: true}

var imageShapePattern = regexp.MustCompile(`^\d+,\d+,\d+$`)

func (h HyperParameters) Validate() error {
	if !validNumLayers[h.NumLayers] {
		return fmt.Errorf("invalid num_layers %d: must be one of 18, 34, 50, 101, 152, 200", h.NumLayers)
	}
	if !imageShapePattern.MatchString(h.ImageShape) {
		return fmt.Errorf("invalid image_shape %q: expected \"channels,height,width\"", h.ImageShape)
	}
	if h.NumTrainingSamples <= 0 {
		return fmt.Errorf("invalid num_training_samples %d: must be positive", h.NumTrainingSamples)
	}
	if h.NumClasses <= 0 {
		return fmt.Errorf("invalid num_classes %d: must be positive", h.NumClasses)
	}
	if h.MiniBatchSize <= 0 {
		return fmt.Errorf("invalid mini_batch_size %d: must be positive", h.MiniBatchSize)
	}
	if h.Epochs <= 0 {
		return fmt.Errorf("invalid epochs %d: must be positive", h.Epochs)
	}
	if h.LearningRate <= 0 {
		return fmt.Errorf("invalid learning_rate %g: must be positive", h.LearningRate)
	}
	if h.TopK <= 0 {
		return fmt.Errorf("invalid top_k %d: must be positive", h.TopK)
	}
	if h.Resize <= 0 {
		return fmt.Errorf("invalid resize %d: must be positive", h.Resize)
	}
	if h.CheckpointFrequency <= 0 {
		return fmt.Errorf("invalid checkpoint_frequency %d: must be positive", h.CheckpointFrequency)
	}
	return nil
}

func (h HyperParameters) Strings() map[string]string {
	pretrained := "0"
	if h.UsePretrainedModel {
		pretrained = "1"
	}

	return map[string]string{
		"num_layers":           strconv.Itoa(h.NumLayers),
		"image_shape":          h.ImageShape,
		"num_training_samples": strconv.Itoa(h.NumTrainingSamples),
		"num_classes":          strconv.Itoa(h.NumClasses),
		"mini_batch_size":      strconv.Itoa(h.MiniBatchSize),
		"epochs":               strconv.Itoa(h.Epochs),
		"learning_rate":        strconv.FormatFloat(h.LearningRate, 'g', -1, 64),
		"top_k":                strconv.Itoa(h.TopK),
		"resize":               strconv.Itoa(h.Resize),
		"checkpoint_frequency": strconv.Itoa(h.CheckpointFrequency),
		"use_pretrained_model": pretrained,
	}
}
