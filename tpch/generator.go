package tpch

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/cube2222/octopipe/arrowexec/helpers"
)

// Dataset holds the rows of the part, partsupp and supplier tables, in schema column order.
type Dataset struct {
	Part     [][]helpers.Value
	PartSupp [][]helpers.Value
	Supplier [][]helpers.Value
}

// Rows returns the rows of the given table.
func (d *Dataset) Rows(table string) ([][]helpers.Value, error) {
	switch table {
	case PartTable:
		return d.Part, nil
	case PartSuppTable:
		return d.PartSupp, nil
	case SupplierTable:
		return d.Supplier, nil
	}
	return nil, fmt.Errorf("unknown table %s", table)
}

const supplierCount = 100

// A group is a (brand, type, size) combination along with the suppliers its parts should have.
type group struct {
	brand      string
	partType   string
	size       int64
	good       int
	complaints int
}

func (g group) key() string {
	return fmt.Sprintf("%s|%s|%d", g.brand, g.partType, g.size)
}

// q16Groups get the distinct supplier counts of the Q16 result head.
// The last one ties with the tenth row and is cut off by the limit.
var q16Groups = []group{
	{brand: "Brand#14", partType: "SMALL ANODIZED NICKEL", size: 45, good: 12, complaints: 2},
	{brand: "Brand#22", partType: "SMALL BURNISHED BRASS", size: 19, good: 12, complaints: 2},
	{brand: "Brand#35", partType: "PROMO BRUSHED COPPER", size: 9, good: 12, complaints: 2},
	{brand: "Brand#52", partType: "LARGE PLATED TIN", size: 23, good: 12, complaints: 2},
	{brand: "Brand#13", partType: "STANDARD POLISHED STEEL", size: 36, good: 11, complaints: 2},
	{brand: "Brand#31", partType: "ECONOMY ANODIZED BRASS", size: 3, good: 10, complaints: 2},
	{brand: "Brand#44", partType: "MEDIUM BRUSHED COPPER", size: 14, good: 9, complaints: 2},
	{brand: "Brand#11", partType: "PROMO PLATED STEEL", size: 49, good: 8, complaints: 2},
	{brand: "Brand#21", partType: "LARGE BURNISHED NICKEL", size: 3, good: 8, complaints: 2},
	{brand: "Brand#43", partType: "SMALL POLISHED TIN", size: 45, good: 8, complaints: 2},
	{brand: "Brand#53", partType: "ECONOMY PLATED COPPER", size: 9, good: 8, complaints: 2},
}

// filteredGroups would lead the result if the predicates or the anti join didn't remove them.
var filteredGroups = []group{
	{brand: "Brand#45", partType: "SMALL ANODIZED NICKEL", size: 45, good: 20},
	{brand: "Brand#12", partType: "MEDIUM POLISHED BRASS", size: 19, good: 20},
	{brand: "Brand#15", partType: "SMALL BRUSHED TIN", size: 50, good: 20},
	{brand: "Brand#10", partType: "LARGE ANODIZED STEEL", size: 14, good: 7, complaints: 6},
}

const fillerGroups = 60

// fillerMaxSuppliers keeps filler groups below the head of the Q16 result.
const fillerMaxSuppliers = 7

var (
	typeSyllables = [][]string{
		{"STANDARD", "SMALL", "MEDIUM", "LARGE", "ECONOMY", "PROMO"},
		{"ANODIZED", "BURNISHED", "PLATED", "POLISHED", "BRUSHED"},
		{"TIN", "NICKEL", "BRASS", "STEEL", "COPPER"},
	}
	containers = []string{"SM CASE", "SM BOX", "MED BAG", "MED PKG", "LG CASE", "LG DRUM", "JUMBO JAR", "WRAP PACK"}
	colors     = []string{"almond", "antique", "azure", "blush", "burlywood", "chartreuse", "cornsilk", "drab", "forest", "ghost", "khaki", "lavender", "linen", "navy", "orchid", "peru", "salmon", "thistle"}
	words      = []string{"furiously", "final", "deposits", "carefully", "regular", "packages", "blithely", "ironic", "accounts", "quickly", "pending", "requests", "slyly", "express", "foxes", "sleep", "haggle", "theodolites"}
)

type generator struct {
	rand *rand.Rand
	data *Dataset

	good       []int64
	complaints []int64
	nextPart   int64
	nextGroup  int
}

// Generate deterministically generates a small dataset for TPC-H Q16.
//
// Suppliers with a key ending in 7 have a complaints comment. Those ending in 3 mention customers without complaints.
// Every group gets two parts sharing a supplier, so only distinct counting gets the counts right.
func Generate() *Dataset {
	g := &generator{
		rand:     rand.New(rand.NewSource(16)),
		data:     &Dataset{},
		nextPart: 1,
	}
	g.suppliers()

	used := make(map[string]bool)
	for _, grp := range append(append([]group{}, q16Groups...), filteredGroups...) {
		used[grp.key()] = true
		g.addGroup(grp)
	}
	for added := 0; added < fillerGroups; {
		grp := group{
			brand:      fmt.Sprintf("Brand#%d%d", g.rand.Intn(5)+1, g.rand.Intn(5)+1),
			partType:   g.partType(),
			size:       int64(g.rand.Intn(50) + 1),
			good:       g.rand.Intn(fillerMaxSuppliers) + 1,
			complaints: g.rand.Intn(3),
		}
		if used[grp.key()] {
			continue
		}
		used[grp.key()] = true
		g.addGroup(grp)
		added++
	}
	return g.data
}

func (g *generator) suppliers() {
	for key := int64(1); key <= supplierCount; key++ {
		var comment string
		switch key % 10 {
		case 7:
			comment = fmt.Sprintf("%s Customer %s Complaints %s", g.sentence(2), g.sentence(1), g.sentence(2))
			g.complaints = append(g.complaints, key)
		case 3:
			comment = fmt.Sprintf("Customer service %s", g.sentence(3))
			g.good = append(g.good, key)
		default:
			comment = g.sentence(5)
			g.good = append(g.good, key)
		}
		g.data.Supplier = append(g.data.Supplier, []helpers.Value{
			helpers.NewInt(key),
			helpers.NewString(fmt.Sprintf("Supplier#%09d", key)),
			helpers.NewString(g.address()),
			helpers.NewInt(key % 25),
			helpers.NewString(fmt.Sprintf("%02d-%03d-%03d-%04d", 10+key%25, g.rand.Intn(900)+100, g.rand.Intn(900)+100, g.rand.Intn(9000)+1000)),
			helpers.NewFloat(g.cents(-99999, 999999)),
			helpers.NewString(comment),
		})
	}
}

// addGroup adds two parts of the group. The first one gets the lower half of the group's good suppliers
// and the second one the upper half, the middle supplier being shared.
// Complaint suppliers alternate between the two.
func (g *generator) addGroup(grp group) {
	offset := g.nextGroup * 7
	g.nextGroup++

	first, second := g.addPart(grp), g.addPart(grp)
	half := grp.good / 2
	for j := 0; j < grp.good; j++ {
		supplier := g.good[(offset+j)%len(g.good)]
		if j <= half {
			g.addPartSupp(first, supplier)
		}
		if j >= half {
			g.addPartSupp(second, supplier)
		}
	}
	for k := 0; k < grp.complaints; k++ {
		supplier := g.complaints[(offset+k)%len(g.complaints)]
		if k%2 == 0 {
			g.addPartSupp(first, supplier)
		} else {
			g.addPartSupp(second, supplier)
		}
	}
}

func (g *generator) addPart(grp group) int64 {
	key := g.nextPart
	g.nextPart++
	g.data.Part = append(g.data.Part, []helpers.Value{
		helpers.NewInt(key),
		helpers.NewString(fmt.Sprintf("%s %s", colors[g.rand.Intn(len(colors))], colors[g.rand.Intn(len(colors))])),
		helpers.NewString("Manufacturer#" + grp.brand[len("Brand#"):len("Brand#")+1]),
		helpers.NewString(grp.brand),
		helpers.NewString(grp.partType),
		helpers.NewInt(grp.size),
		helpers.NewString(containers[g.rand.Intn(len(containers))]),
		helpers.NewFloat(float64(90000+(key/10)%20001+100*(key%1000)) / 100),
		helpers.NewString(g.sentence(3)),
	})
	return key
}

func (g *generator) addPartSupp(part, supplier int64) {
	g.data.PartSupp = append(g.data.PartSupp, []helpers.Value{
		helpers.NewInt(part),
		helpers.NewInt(supplier),
		helpers.NewInt(int64(g.rand.Intn(9999) + 1)),
		helpers.NewFloat(g.cents(100, 100000)),
		helpers.NewString(g.sentence(4)),
	})
}

func (g *generator) partType() string {
	parts := make([]string, len(typeSyllables))
	for i, syllables := range typeSyllables {
		parts[i] = syllables[g.rand.Intn(len(syllables))]
	}
	return strings.Join(parts, " ")
}

func (g *generator) sentence(length int) string {
	out := make([]string, length)
	for i := range out {
		out[i] = words[g.rand.Intn(len(words))]
	}
	return strings.Join(out, " ")
}

func (g *generator) address() string {
	const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789,"
	out := make([]byte, g.rand.Intn(15)+10)
	for i := range out {
		out[i] = alphabet[g.rand.Intn(len(alphabet))]
	}
	return string(out)
}

// cents returns a random amount between min and max cents, inclusive.
func (g *generator) cents(min, max int) float64 {
	return float64(g.rand.Intn(max-min+1)+min) / 100
}
