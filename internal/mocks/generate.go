package mocks

//go:generate mockery --name QueryCounter --srcpkg github.com/aevon-lab/aevon-datum/internal/projection --output ./projection --outpkg projectionmocks --with-expecter
