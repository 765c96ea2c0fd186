package charter_test

import (
	"context"
	"fmt"

	"github.com/xraph/charter"
	"github.com/xraph/charter/permission"
	"github.com/xraph/charter/principal"
	"github.com/xraph/charter/role"
	"github.com/xraph/charter/store/memory"
)

func ExampleEngine_HasPermission() {
	ctx := context.Background()
	st := memory.New()
	eng, err := charter.NewEngine(charter.WithStore(st))
	if err != nil {
		panic(err)
	}

	editor := role.Definition{Name: "editor"}.New()
	publish := &permission.Permission{Name: permission.NameFor("publish", "posts")}
	_ = eng.CreateRole(ctx, editor)
	_ = eng.CreatePermission(ctx, publish)
	_ = eng.AttachPermissionsToRole(ctx, editor.ID, publish.ID)

	ada := &principal.Principal{Kind: principal.KindUser, Email: "ada@example.com"}
	_ = st.CreatePrincipal(ctx, ada)
	_ = eng.AttachRoles(ctx, ada.Ref(), editor.ID)

	ok, _ := eng.HasPermission(ctx, ada.Ref(), "publish--posts")
	fmt.Println(ok)
	// Output: true
}

func ExampleEngine_OnPrincipalVerified() {
	ctx := context.Background()
	st := memory.New()
	eng, err := charter.NewEngine(charter.WithStore(st))
	if err != nil {
		panic(err)
	}
	for _, def := range role.Bootstrap() {
		_ = eng.CreateRole(ctx, def.New())
	}

	p := &principal.Principal{Kind: principal.KindUser, Email: "grace@example.com"}
	_ = st.CreatePrincipal(ctx, p)

	if err := eng.OnPrincipalVerified(ctx, p); err != nil {
		fmt.Println(err)
		return
	}
	member, _ := eng.For(p.Ref()).IsMember(ctx)
	admin, _ := eng.For(p.Ref()).IsAdmin(ctx)
	fmt.Println(p.Active, member, admin)
	// Output: true true false
}
