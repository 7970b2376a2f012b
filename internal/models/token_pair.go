package models

import "time"

// TokenPair — пара токенов, выдаваемая при логине/регистрации/ротации.
//
// Описание:
//   - AccessToken — короткоживущий JWT (kind=access) с ролями пользователя;
//   - RefreshToken — долгоживущий JWT (kind=refresh), предъявляется
//     для выпуска новой пары; на сервере хранится только его хэш;
//   - AccessExpiresAt — момент истечения access-токена (UTC).
type TokenPair struct {
	AccessToken     string
	RefreshToken    string
	AccessExpiresAt time.Time
}
