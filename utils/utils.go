package utils

import (
	"bufio"
	"io"
	"os"

	"github.com/twmb/murmur3"
)

// HashLines hashes lines in order. Each line is terminated by a newline so
// that ["ab", "c"] and ["a", "bc"] hash differently.
func HashLines(lines ...[]string) uint64 {
	hash := murmur3.New64()
	for _, group := range lines {
		for _, line := range group {
			_, _ = hash.Write([]byte(line))
			_, _ = hash.Write([]byte{'\n'})
		}
		// group separator
		_, _ = hash.Write([]byte{0})
	}
	return hash.Sum64()
}

func ReadList(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ScanLines(file)
}

func ScanLines(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var result []string
	for scanner.Scan() {
		result = append(result, scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
