package sensor

import (
	"fmt"
	"os"
	"strconv"
)

// WriteEdgeThreshold pushes the force threshold to the sensor hub's sysfs node
// so the hub itself filters presses below it. The value is written as an integer.
func WriteEdgeThreshold(path string, threshold float64) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return fmt.Errorf("open edge threshold %s: %w", path, err)
	}
	if _, err := f.WriteString(strconv.Itoa(int(threshold)) + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("write edge threshold %s: %w", path, err)
	}
	return f.Close()
}
