// Command genpatients emits synthetic patient records as JSON for
// exercising the pipeline against development backends.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"os"

	"github.com/google/uuid"

	"github.com/genomic-pipeline-orchestrator/internal/domain"
)

var geneVariants = map[string][]string{
	"BRCA1": {"variant1", "variant2", "variant3"},
	"BRCA2": {"variant1", "variant2", "variant3"},
	"TP53":  {"variant1", "variant2"},
	"EGFR":  {"variant1", "variant2", "variant3", "variant4"},
	"KRAS":  {"variant1", "variant2"},
	"BRAF":  {"variant1", "variant2"},
	"ALK":   {"variant1", "variant2", "variant3"},
	"PTEN":  {"variant1", "variant2"},
}

var conditions = []string{
	"Breast Cancer", "Ovarian Cancer", "Lung Cancer", "Colorectal Cancer",
	"Melanoma", "Leukemia", "Lymphoma", "Pancreatic Cancer",
}

var treatments = []string{
	"Chemotherapy", "Radiation Therapy", "Immunotherapy", "Targeted Therapy",
	"Hormone Therapy", "Surgery", "Stem Cell Transplant", "Gene Therapy",
}

var medications = []string{
	"Tamoxifen", "Letrozole", "Trastuzumab", "Pembrolizumab",
	"Nivolumab", "Olaparib", "Palbociclib", "Erlotinib",
}

var allergies = []string{
	"Penicillin", "Sulfa Drugs", "Iodine", "Latex", "Aspirin", "Morphine", "Codeine",
}

func main() {
	count := flag.Int("count", 10, "number of records to generate")
	out := flag.String("out", "", "output file (default stdout)")
	flag.Parse()

	records := make([]domain.PatientRecord, 0, *count)
	for i := 0; i < *count; i++ {
		records = append(records, generateRecord())
	}

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatalf("Failed to create output file: %v", err)
		}
		defer f.Close()
		w = f
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(records); err != nil {
		log.Fatalf("Failed to encode records: %v", err)
	}
}

func generateRecord() domain.PatientRecord {
	variants := make(map[string]interface{})
	scores := make(map[string]interface{})
	for _, gene := range sample(keys(geneVariants), 2+rand.Intn(4)) {
		variants[gene] = pick(geneVariants[gene])
		scores[gene] = rand.Float64()
	}

	return domain.PatientRecord{
		ID: uuid.New().String(),
		GenomicData: map[string]interface{}{
			"gene_variants":   variants,
			"mutation_scores": scores,
		},
		MedicalHistory: map[string][]string{
			"conditions":  sample(conditions, 1+rand.Intn(2)),
			"treatments":  sample(treatments, rand.Intn(3)),
			"medications": sample(medications, rand.Intn(3)),
			"allergies":   sample(allergies, rand.Intn(2)),
		},
	}
}

func keys(m map[string][]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func pick(items []string) string {
	return items[rand.Intn(len(items))]
}

func sample(items []string, n int) []string {
	if n > len(items) {
		n = len(items)
	}
	shuffled := append([]string(nil), items...)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled[:n]
}
