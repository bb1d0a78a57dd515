package fastcore_test

import (
	"context"
	"fmt"

	"github.com/katalvlaran/metnet/fastcore"
	"github.com/katalvlaran/metnet/lp/simplex"
	"github.com/katalvlaran/metnet/metabolic"
	"github.com/katalvlaran/metnet/reaction"
)

// ExampleFastCC finds the branch that leads into a dead end.
func ExampleFastCC() {
	db := metabolic.NewDictDatabase()
	db.SetReaction("EX_A", reaction.MustParse("=> |A|"))
	db.SetReaction("R1", reaction.MustParse("|A| => |B|"))
	db.SetReaction("EX_B", reaction.MustParse("|B| =>"))
	db.SetReaction("R2", reaction.MustParse("|B| => |X|"))

	model, _ := metabolic.LoadModel(db, db.Reactions())
	blocked, err := fastcore.FastCC(context.Background(), model, simplex.New(), 1e-3)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(blocked)
	// Output:
	// [R2]
}
