package workflow

const (
	sizeK = 1024
	sizeM = 1024 * sizeK
	sizeG = 1024 * sizeM
)

// Rough guesses, largest first. The first threshold the file exceeds wins.
var ingestEstimates = []struct {
	over int64
	text string
}{
	{5 * sizeG, "several hours"},
	{1 * sizeG, "a couple hours"},
	{500 * sizeM, "an hour"},
	{1 * sizeM, "several minutes"},
}

// EstimateIngestTime guesses how long a backfill of size bytes runs.
// verb completes the sentence: "may be several hours", "may take an hour".
func EstimateIngestTime(size int64, verb string) string {
	for _, e := range ingestEstimates {
		if size > e.over {
			return "may " + verb + " " + e.text
		}
	}
	return "may " + verb + " a couple minutes"
}
