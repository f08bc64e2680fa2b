package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bargeh-api/internal/dto"
)

func TestUserServiceMeAndCreate(t *testing.T) {
	db := setupServiceDB(t)
	f := seedCourse(t, db)
	svc := NewUserService(newRepos(db).users, testValidator(), testLogger())
	ctx := context.Background()

	me, err := svc.Me(ctx, f.studentActor())
	require.NoError(t, err)
	require.Equal(t, "Sam", me.Name)
	require.Equal(t, "student", me.Role)

	created, err := svc.Create(ctx, f.instructorActor(), dto.UserCreateRequest{Email: "New.Person@Uni.Test", Name: "New <b>Person</b>"})
	require.NoError(t, err)
	require.Equal(t, "new.person@uni.test", created.Email)
	require.Equal(t, "New Person", created.Name)

	_, err = svc.Create(ctx, f.instructorActor(), dto.UserCreateRequest{Email: "new.person@uni.test"})
	require.ErrorIs(t, err, ErrConflict)

	_, err = svc.Create(ctx, f.studentActor(), dto.UserCreateRequest{Email: "x@uni.test"})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Me(ctx, Actor{ID: 9999, Role: "student"})
	require.ErrorIs(t, err, ErrUserNotFound)
}
