package dto

// BufferedPhoto holds a still photo and its label before flushing to disk.
type BufferedPhoto struct {
	Timestamp string
	Camera    string
	Label     string
	Data      []byte
}
