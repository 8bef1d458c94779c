// Package models - Class label sets and cross-set mapping.
package models

import "fmt"

// OutputClass represents one detection label.
type OutputClass struct {
	// The integer index returned by the model.
	Index int
	// The human-readable label.
	Name string
}

// OutputClassSet ties a family to its full list of labels.
type OutputClassSet struct {
	// Class set identifier.
	Style Family
	// Classes that are supported and mappable.
	Classes []OutputClass
	// nameToIdx for fast lookup by name
	nameToIdx map[string]int
}

// BuildNameIndexMap builds or rebuilds the name->index map.
func (s *OutputClassSet) BuildNameIndexMap() {
	s.nameToIdx = make(map[string]int, len(s.Classes))
	for _, c := range s.Classes {
		s.nameToIdx[c.Name] = c.Index
	}
}

// Labels returns the label names in index order.
func (s *OutputClassSet) Labels() []string {
	labels := make([]string, len(s.Classes))
	for i, c := range s.Classes {
		labels[i] = c.Name
	}
	return labels
}

// ClassManager holds all registered class sets.
type ClassManager struct {
	sets map[Family]*OutputClassSet
}

// NewClassManager initializes and registers the given sets.
func NewClassManager(allSets ...*OutputClassSet) *ClassManager {
	mgr := &ClassManager{sets: make(map[Family]*OutputClassSet)}
	for _, set := range allSets {
		set.BuildNameIndexMap()
		mgr.sets[set.Style] = set
	}
	return mgr
}

// GetSet returns the class set registered for a family.
func (m *ClassManager) GetSet(style Family) (*OutputClassSet, bool) {
	set, ok := m.sets[style]
	return set, ok
}

// GetName returns the class name for a given family and index.
func (m *ClassManager) GetName(style Family, idx int) (string, error) {
	set, ok := m.sets[style]
	if !ok {
		return "", fmt.Errorf("style %q not registered", style)
	}
	if idx < 0 || idx >= len(set.Classes) {
		return "", fmt.Errorf("index %d out of range for style %q", idx, style)
	}
	return set.Classes[idx].Name, nil
}

// GetIndex returns the class index for a given family and name.
func (m *ClassManager) GetIndex(style Family, name string) (int, error) {
	set, ok := m.sets[style]
	if !ok {
		return -1, fmt.Errorf("style %q not registered", style)
	}
	idx, ok := set.nameToIdx[name]
	if !ok {
		return -1, fmt.Errorf("name %q not found in style %q", name, style)
	}
	return idx, nil
}

// MapClass maps an index from one family to another, returning the target
// OutputClass. Useful when a COCO-indexed consumer reads YOLO-indexed output.
func (m *ClassManager) MapClass(fromStyle Family, idx int, toStyle Family) (OutputClass, error) {
	name, err := m.GetName(fromStyle, idx)
	if err != nil {
		return OutputClass{}, err
	}
	toIdx, err := m.GetIndex(toStyle, name)
	if err != nil {
		return OutputClass{}, err
	}
	return OutputClass{Index: toIdx, Name: name}, nil
}

// newClassSet builds an OutputClassSet from names in index order.
func newClassSet(style Family, names []string) OutputClassSet {
	classes := make([]OutputClass, len(names))
	for i, n := range names {
		classes[i] = OutputClass{Index: i, Name: n}
	}
	return OutputClassSet{Style: style, Classes: classes}
}

var cocoNames = []string{
	"__background__", "person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat", "dog", "horse", "sheep",
	"cow", "elephant", "bear", "zebra", "giraffe", "backpack", "umbrella", "handbag", "tie", "suitcase",
	"frisbee", "skis", "snowboard", "sports ball", "kite", "baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket",
	"bottle", "wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple", "sandwich",
	"orange", "broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair", "couch", "potted plant",
	"bed", "dining table", "toilet", "tv", "laptop", "mouse", "remote", "keyboard", "cell phone", "microwave",
	"oven", "toaster", "sink", "refrigerator", "book", "clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
}

var yoloNames = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat", "dog", "horse",
	"sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack", "umbrella", "handbag", "tie",
	"suitcase", "frisbee", "skis", "snowboard", "sports ball", "kite", "baseball bat", "baseball glove",
	"skateboard", "surfboard", "tennis racket", "bottle", "wine glass", "cup", "fork", "knife", "spoon",
	"bowl", "banana", "apple", "sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut",
	"cake", "chair", "couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink", "refrigerator", "book",
	"clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
}

// COCOClasses is the full 80 COCO classes plus "__background__" at index 0.
var COCOClasses = newClassSet(FamilyCOCO, cocoNames)

// YOLOClasses is the 80 COCO classes without a background entry, the label
// order used by the single-output YOLO generations.
var YOLOClasses = newClassSet(FamilyYOLO, yoloNames)

var defaultManager = NewClassManager(&COCOClasses, &YOLOClasses)

// DefaultClassManager returns the manager preloaded with the built-in sets.
func DefaultClassManager() *ClassManager {
	return defaultManager
}
