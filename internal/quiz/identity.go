package quiz

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// ComputeID derives the quiz id from its generation parameters. Equal inputs
// always yield equal ids, so repeat requests land on the cached quiz.
func ComputeID(sourceRef string, numMCQ, numShort int) string {
	h := sha256.New()
	h.Write([]byte(sourceRef))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(numMCQ)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(numShort)))
	return hex.EncodeToString(h.Sum(nil))[:32]
}
